package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// Chainlink is a price source backed by an on-chain aggregator. It reports
// no volume.
type Chainlink struct {
	caller ethereum.ContractCaller
	feed   common.Address
	maxAge time.Duration
	now    func() time.Time

	mu       sync.Mutex
	decimals uint8
	hasDec   bool
}

// NewChainlink creates a source reading the aggregator at feed. Rounds
// older than maxAge are rejected; zero disables the check.
func NewChainlink(caller ethereum.ContractCaller, feed string, maxAge time.Duration) *Chainlink {
	if feed == "" {
		feed = ChainlinkBTCUSD
	}
	return &Chainlink{
		caller: caller,
		feed:   common.HexToAddress(feed),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Name returns the source identifier.
func (c *Chainlink) Name() string { return "chainlink" }

// Fetch reads latestRoundData and scales the answer by the feed decimals.
func (c *Chainlink) Fetch(ctx context.Context) (domain.PricePoint, error) {
	decimals, err := c.feedDecimals(ctx)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("chainlink: %w", err)
	}

	vals, err := call(ctx, c.caller, c.feed, aggregator, "latestRoundData")
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("chainlink: %w", err)
	}
	answer, ok := vals[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return domain.PricePoint{}, fmt.Errorf("chainlink: invalid answer %v", vals[1])
	}
	updatedAt, _ := vals[3].(*big.Int)
	ts := c.now().UTC()
	if updatedAt != nil && updatedAt.Sign() > 0 {
		ts = time.Unix(updatedAt.Int64(), 0).UTC()
	}
	if c.maxAge > 0 && c.now().Sub(ts) > c.maxAge {
		return domain.PricePoint{}, fmt.Errorf("chainlink: stale round from %s", ts.Format(time.RFC3339))
	}

	return domain.PricePoint{
		Time:   c.now().UTC(),
		Price:  scale(answer, decimals),
		Source: c.Name(),
	}, nil
}

// feedDecimals reads decimals once; a failed read is retried next time.
func (c *Chainlink) feedDecimals(ctx context.Context) (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasDec {
		return c.decimals, nil
	}
	vals, err := call(ctx, c.caller, c.feed, aggregator, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", vals[0])
	}
	c.decimals, c.hasDec = d, true
	return d, nil
}

var _ domain.PriceSource = (*Chainlink)(nil)
