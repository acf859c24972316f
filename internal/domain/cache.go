package domain

import (
	"context"
	"time"
)

// PriceCache mirrors the sampled price stream so a restarted process can
// warm its history.
type PriceCache interface {
	SetPrice(ctx context.Context, assetID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, assetID string) (float64, time.Time, error)
	AppendHistory(ctx context.Context, assetID string, p PricePoint, maxLen int) error
	History(ctx context.Context, assetID string, since time.Time) ([]PricePoint, error)
}

// MarketCache stores the market resolved for an interval.
type MarketCache interface {
	SetCurrent(ctx context.Context, interval time.Time, market Market, ttl time.Duration) error
	GetCurrent(ctx context.Context, interval time.Time) (Market, error)
}

// RiskStateCache persists the risk state and unsettled positions between
// restarts.
type RiskStateCache interface {
	Save(ctx context.Context, key string, snap SessionSnapshot) error
	Load(ctx context.Context, key string) (SessionSnapshot, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
	Extend(ctx context.Context, key string, ttl time.Duration) error
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
