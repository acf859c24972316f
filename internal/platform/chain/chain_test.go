package chain

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// fakeCaller answers contract calls by method selector.
type fakeCaller struct {
	def     abi.ABI
	results map[string][]any
	err     error
	calls   int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for name, m := range f.def.Methods {
		if bytes.Equal(msg.Data[:4], m.ID) {
			return m.Outputs.Pack(f.results[name]...)
		}
	}
	return nil, errors.New("unknown method")
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestUSDCBalance(t *testing.T) {
	fc := &fakeCaller{def: erc20, results: map[string][]any{
		"balanceOf": {big.NewInt(123_450_000)},
	}}
	b := NewUSDCBalance(fc, "", "0x1111111111111111111111111111111111111111", discard())

	got, err := b.Balance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 123.45, got, 1e-9)

	// RPC outage falls back to the last reading.
	fc.err = errors.New("rpc down")
	got, err = b.Balance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 123.45, got, 1e-9)
}

func TestUSDCBalanceUnavailable(t *testing.T) {
	fc := &fakeCaller{def: erc20, err: errors.New("rpc down")}
	b := NewUSDCBalance(fc, "", "0x1111111111111111111111111111111111111111", discard())
	_, err := b.Balance(context.Background())
	assert.True(t, errors.Is(err, domain.ErrBalanceUnavailable))
}

func TestChainlinkFetch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fc := &fakeCaller{def: aggregator, results: map[string][]any{
		"decimals": {uint8(8)},
		"latestRoundData": {
			big.NewInt(1), big.NewInt(6_712_345_000_000), big.NewInt(now.Unix() - 30),
			big.NewInt(now.Unix() - 30), big.NewInt(1),
		},
	}}
	c := NewChainlink(fc, "", 10*time.Minute)
	c.now = func() time.Time { return now }

	p, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 67123.45, p.Price, 1e-6)
	assert.Equal(t, 0.0, p.Volume)
	assert.Equal(t, "chainlink", p.Source)
	assert.Equal(t, now, p.Time)

	// decimals is read once
	_, err = c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, fc.calls)
}

func TestChainlinkStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := big.NewInt(now.Add(-time.Hour).Unix())
	fc := &fakeCaller{def: aggregator, results: map[string][]any{
		"decimals":        {uint8(8)},
		"latestRoundData": {big.NewInt(1), big.NewInt(100), old, old, big.NewInt(1)},
	}}
	c := NewChainlink(fc, "", 10*time.Minute)
	c.now = func() time.Time { return now }

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale")
}

func TestChainlinkRPCError(t *testing.T) {
	fc := &fakeCaller{def: aggregator, err: errors.New("timeout")}
	_, err := NewChainlink(fc, "", 0).Fetch(context.Background())
	require.Error(t, err)
}
