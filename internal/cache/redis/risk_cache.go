package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// riskStateTTL keeps a snapshot around long enough to survive a restart on
// the next day, so positions opened just before midnight still settle.
const riskStateTTL = 48 * time.Hour

// RiskStateCache stores the session snapshot as a JSON string at
// "risk:{key}".
type RiskStateCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRiskStateCache creates a RiskStateCache backed by the given Client.
func NewRiskStateCache(c *Client) *RiskStateCache {
	return &RiskStateCache{rdb: c.Underlying(), prefix: c.prefix}
}

func (rc *RiskStateCache) riskKey(key string) string {
	return joinKey(rc.prefix, "risk", key)
}

// Save snapshots the session under key.
func (rc *RiskStateCache) Save(ctx context.Context, key string, snap domain.SessionSnapshot) error {
	data, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal session snapshot: %w", err)
	}
	if err := rc.rdb.Set(ctx, rc.riskKey(key), data, riskStateTTL).Err(); err != nil {
		return fmt.Errorf("redis: save session snapshot %s: %w", key, err)
	}
	return nil
}

// Load returns the snapshot under key or domain.ErrNotFound.
func (rc *RiskStateCache) Load(ctx context.Context, key string) (domain.SessionSnapshot, error) {
	data, err := rc.rdb.Get(ctx, rc.riskKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SessionSnapshot{}, domain.ErrNotFound
		}
		return domain.SessionSnapshot{}, fmt.Errorf("redis: load session snapshot %s: %w", key, err)
	}
	return decodeSnapshot(data)
}

func decodeSnapshot(data []byte) (domain.SessionSnapshot, error) {
	var snap domain.SessionSnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("redis: unmarshal session snapshot: %w", err)
	}
	return snap, nil
}

var _ domain.RiskStateCache = (*RiskStateCache)(nil)
