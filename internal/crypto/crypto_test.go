package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known hardhat account #0.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestSignerAddress(t *testing.T) {
	s, err := NewSigner("0x"+testKey, 137)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), s.Address())

	_, err = NewSigner("nothex", 137)
	require.Error(t, err)
}

func TestBuildBuy(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)

	p, err := s.BuildBuy(BuyParams{TokenID: "123456", AmountUSD: 7.009, Price: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "7000000", p.MakerAmount)
	assert.Equal(t, "14000000", p.TakerAmount)
	assert.Equal(t, s.Address().Hex(), p.Maker)
	assert.Equal(t, s.Address().Hex(), p.Signer)
	assert.Equal(t, 0, p.Side)
	assert.NotEmpty(t, p.Salt)

	safe := "0x1111111111111111111111111111111111111111"
	p, err = s.BuildBuy(BuyParams{TokenID: "1", AmountUSD: 5, Price: 0.25, Funder: safe, SignatureType: SignatureGnosisSafe})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(safe).Hex(), p.Maker)
	assert.Equal(t, "20000000", p.TakerAmount)
	assert.Equal(t, SignatureGnosisSafe, p.SignatureType)

	_, err = s.BuildBuy(BuyParams{TokenID: "1", AmountUSD: 5, Price: 1})
	require.Error(t, err)
	_, err = s.BuildBuy(BuyParams{AmountUSD: 5, Price: 0.5})
	require.Error(t, err)
	_, err = s.BuildBuy(BuyParams{TokenID: "1", AmountUSD: 0.001, Price: 0.5})
	require.Error(t, err)
}

func TestSignOrderRecoversSigner(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)
	p, err := s.BuildBuy(BuyParams{TokenID: "987654321", AmountUSD: 10, Price: 0.55})
	require.NoError(t, err)

	sigHex, err := s.SignOrder(p)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sigHex, "0x"))
	sig := common.FromHex(sigHex)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	structHash, err := orderStructHash(p)
	require.NoError(t, err)
	digest := eip712Hash(s.orderDomain, structHash)
	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), ethcrypto.PubkeyToAddress(*pub))

	p.TokenID = "not-a-number"
	_, err = s.SignOrder(p)
	require.Error(t, err)
}

func TestSignAuthMessage(t *testing.T) {
	s, err := NewSigner(testKey, 137)
	require.NoError(t, err)
	a, err := s.SignAuthMessage(1700000000, 0)
	require.NoError(t, err)
	b, err := s.SignAuthMessage(1700000001, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestL2Headers(t *testing.T) {
	creds := APICreds{Key: "key-1", Secret: "c2VjcmV0LXNlY3JldA==", Passphrase: "pass"}
	require.True(t, creds.Valid())

	h := creds.L2HeadersAt("0xabc", "POST", "/order", `{"a":1}`, 1700000000)
	assert.Equal(t, "0xabc", h["POLY_ADDRESS"])
	assert.Equal(t, "key-1", h["POLY_API_KEY"])
	assert.Equal(t, "1700000000", h["POLY_TIMESTAMP"])
	assert.Equal(t, "pass", h["POLY_PASSPHRASE"])
	assert.NotEmpty(t, h["POLY_SIGNATURE"])

	same := creds.L2HeadersAt("0xabc", "POST", "/order", `{"a":1}`, 1700000000)
	assert.Equal(t, h["POLY_SIGNATURE"], same["POLY_SIGNATURE"])
	other := creds.L2HeadersAt("0xabc", "POST", "/order", `{"a":2}`, 1700000000)
	assert.NotEqual(t, h["POLY_SIGNATURE"], other["POLY_SIGNATURE"])

	assert.NotContains(t, creds.String(), "c2VjcmV0LXNlY3JldA==")
	assert.False(t, APICreds{Key: "k"}.Valid())
}

func TestKeyFileRoundTrip(t *testing.T) {
	data, err := EncryptKey("0x"+testKey, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(data, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = DecryptKey(data, "wrong")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	got, err = LoadKey(KeySource{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, testKey, got)
}

func TestLoadKey(t *testing.T) {
	got, err := LoadKey(KeySource{RawPrivateKey: "0x" + testKey, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = LoadKey(KeySource{RawPrivateKey: "zz"})
	require.Error(t, err)
	_, err = LoadKey(KeySource{})
	require.Error(t, err)
	_, err = EncryptKey(testKey, "")
	require.Error(t, err)
}
