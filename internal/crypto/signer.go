package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Polygon mainnet CTF exchange that verifies order signatures.
const ExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"

// Signature types accepted by the exchange.
const (
	SignatureEOA        = 0
	SignaturePolyProxy  = 1
	SignatureGnosisSafe = 2
)

const (
	clobAuthMessage = "This message attests that I control the given wallet"
	zeroAddress     = "0x0000000000000000000000000000000000000000"
	usdcDecimals    = 1e6
)

var (
	authDomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)
	exchangeDomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)
	clobAuthTypeHash = ethcrypto.Keccak256(
		[]byte("ClobAuth(address address,string timestamp,uint256 nonce,string message)"),
	)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"),
	)
)

// OrderPayload is the signed body of a CLOB order. Large integers travel as
// decimal strings.
type OrderPayload struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`          // 0 = BUY, 1 = SELL
	SignatureType int    `json:"signatureType"` // 0 = EOA, 1 = POLY_PROXY, 2 = POLY_GNOSIS_SAFE
}

// BuyParams describes a buy of an outcome token for a USD amount.
type BuyParams struct {
	TokenID       string
	AmountUSD     float64
	Price         float64
	Funder        string // proxy or safe holding the USDC; empty for EOA
	SignatureType int
}

// Signer signs CLOB auth messages and orders with one secp256k1 key.
type Signer struct {
	privateKey  *ecdsa.PrivateKey
	address     common.Address
	chainID     int
	authDomain  []byte
	orderDomain []byte
}

// NewSigner creates a Signer from a hex private key for chainID (137 on
// Polygon mainnet).
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	cid := big.NewInt(int64(chainID))
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
		authDomain: ethcrypto.Keccak256(concatBytes(
			authDomainTypeHash,
			ethcrypto.Keccak256([]byte("ClobAuthDomain")),
			ethcrypto.Keccak256([]byte("1")),
			bigIntTo32Bytes(cid),
		)),
		orderDomain: ethcrypto.Keccak256(concatBytes(
			exchangeDomainTypeHash,
			ethcrypto.Keccak256([]byte("Polymarket CTF Exchange")),
			ethcrypto.Keccak256([]byte("1")),
			bigIntTo32Bytes(cid),
			common.LeftPadBytes(common.HexToAddress(ExchangeAddress).Bytes(), 32),
		)),
	}, nil
}

// Address returns the signing address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAuthMessage signs the ClobAuth message used to derive API credentials.
func (s *Signer) SignAuthMessage(timestamp, nonce int64) (string, error) {
	structHash := ethcrypto.Keccak256(concatBytes(
		clobAuthTypeHash,
		common.LeftPadBytes(s.address.Bytes(), 32),
		ethcrypto.Keccak256([]byte(fmt.Sprintf("%d", timestamp))),
		bigIntTo32Bytes(big.NewInt(nonce)),
		ethcrypto.Keccak256([]byte(clobAuthMessage)),
	))
	return s.signDigest(eip712Hash(s.authDomain, structHash))
}

// SignOrder signs an order against the exchange domain.
func (s *Signer) SignOrder(order OrderPayload) (string, error) {
	structHash, err := orderStructHash(order)
	if err != nil {
		return "", err
	}
	return s.signDigest(eip712Hash(s.orderDomain, structHash))
}

// BuildBuy converts a USD buy into an unsigned payload. The maker pays
// AmountUSD of USDC (6 decimals) and receives AmountUSD/Price shares, both
// rounded down to cents.
func (s *Signer) BuildBuy(p BuyParams) (OrderPayload, error) {
	if p.TokenID == "" {
		return OrderPayload{}, fmt.Errorf("crypto/signer: token id required")
	}
	if !(p.Price > 0 && p.Price < 1) {
		return OrderPayload{}, fmt.Errorf("crypto/signer: price %v outside (0,1)", p.Price)
	}
	amount := math.Floor(p.AmountUSD*100) / 100
	shares := math.Floor(amount/p.Price*100) / 100
	if amount <= 0 || shares <= 0 {
		return OrderPayload{}, fmt.Errorf("crypto/signer: amount %v too small", p.AmountUSD)
	}

	salt, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		return OrderPayload{}, fmt.Errorf("crypto/signer: salt: %w", err)
	}

	maker := s.address.Hex()
	if p.Funder != "" && p.SignatureType != SignatureEOA {
		maker = common.HexToAddress(p.Funder).Hex()
	}
	return OrderPayload{
		Salt:          salt.String(),
		Maker:         maker,
		Signer:        s.address.Hex(),
		Taker:         zeroAddress,
		TokenID:       p.TokenID,
		MakerAmount:   fmt.Sprintf("%d", int64(math.Round(amount*usdcDecimals))),
		TakerAmount:   fmt.Sprintf("%d", int64(math.Round(shares*usdcDecimals))),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          0,
		SignatureType: p.SignatureType,
	}, nil
}

// eip712Hash computes keccak256("\x19\x01" || domainSeparator || structHash).
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(concatBytes([]byte{0x19, 0x01}, domainSep, structHash))
}

// signDigest returns the 65-byte r||s||v signature as 0x-prefixed hex.
func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	// go-ethereum returns v in {0,1}; the exchange expects {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

func orderStructHash(o OrderPayload) ([]byte, error) {
	fields := []struct {
		name, val string
	}{
		{"salt", o.Salt},
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"expiration", o.Expiration},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	}
	nums := make(map[string]*big.Int, len(fields))
	for _, f := range fields {
		n, ok := new(big.Int).SetString(f.val, 10)
		if !ok {
			return nil, fmt.Errorf("crypto/signer: invalid %s %q", f.name, f.val)
		}
		nums[f.name] = n
	}

	return ethcrypto.Keccak256(concatBytes(
		orderTypeHash,
		bigIntTo32Bytes(nums["salt"]),
		common.LeftPadBytes(common.HexToAddress(o.Maker).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(o.Signer).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(o.Taker).Bytes(), 32),
		bigIntTo32Bytes(nums["tokenId"]),
		bigIntTo32Bytes(nums["makerAmount"]),
		bigIntTo32Bytes(nums["takerAmount"]),
		bigIntTo32Bytes(nums["expiration"]),
		bigIntTo32Bytes(nums["nonce"]),
		bigIntTo32Bytes(nums["feeRateBps"]),
		bigIntTo32Bytes(big.NewInt(int64(o.Side))),
		bigIntTo32Bytes(big.NewInt(int64(o.SignatureType))),
	)), nil
}

func bigIntTo32Bytes(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

func concatBytes(slices ...[]byte) []byte {
	var buf []byte
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
