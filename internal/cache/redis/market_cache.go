package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

const minMarketTTL = 30 * time.Second

// MarketCache implements domain.MarketCache. The market resolved for an
// interval is stored as JSON at "market:interval:{unix}" and expires with
// the market.
type MarketCache struct {
	rdb    *redis.Client
	prefix string
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying(), prefix: c.prefix}
}

func (mc *MarketCache) intervalKey(interval time.Time) string {
	return joinKey(mc.prefix, "market", "interval", strconv.FormatInt(interval.Unix(), 10))
}

// SetCurrent stores market as the one for interval. ttl is floored at 30s.
func (mc *MarketCache) SetCurrent(ctx context.Context, interval time.Time, market domain.Market, ttl time.Duration) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}
	if ttl < minMarketTTL {
		ttl = minMarketTTL
	}
	if err := mc.rdb.Set(ctx, mc.intervalKey(interval), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// GetCurrent returns the market cached for interval or domain.ErrNotFound.
func (mc *MarketCache) GetCurrent(ctx context.Context, interval time.Time) (domain.Market, error) {
	data, err := mc.rdb.Get(ctx, mc.intervalKey(interval)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market for %s: %w", interval.Format(time.RFC3339), err)
	}
	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market: %w", err)
	}
	return market, nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
