package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// PriceCache implements domain.PriceCache. The latest price is a hash at
// "price:{asset}" with fields "price" and "ts" (unix nanos); the history is
// a list at "price:{asset}:history", newest at the tail, trimmed to the
// requested length on every append.
type PriceCache struct {
	rdb    *redis.Client
	prefix string
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), prefix: c.prefix}
}

func (pc *PriceCache) priceKey(assetID string) string {
	return joinKey(pc.prefix, "price", assetID)
}

func (pc *PriceCache) historyKey(assetID string) string {
	return joinKey(pc.prefix, "price", assetID, "history")
}

// SetPrice stores the latest price and timestamp for an asset.
func (pc *PriceCache) SetPrice(ctx context.Context, assetID string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, pc.priceKey(assetID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", assetID, err)
	}
	return nil
}

// GetPrice retrieves the latest price and timestamp for an asset.
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, assetID string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, pc.priceKey(assetID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", assetID, err)
	}
	return decodePriceHash(assetID, vals)
}

func decodePriceHash(assetID string, vals map[string]string) (float64, time.Time, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", assetID, err)
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", assetID, err)
	}
	return price, time.Unix(0, tsNano).UTC(), nil
}

// historyEntry is the list element form of a PricePoint.
type historyEntry struct {
	T int64   `json:"t"` // unix millis
	P float64 `json:"p"`
	V float64 `json:"v"`
	S string  `json:"s,omitempty"`
}

func encodeHistory(p domain.PricePoint) ([]byte, error) {
	return json.Marshal(historyEntry{T: p.Time.UnixMilli(), P: p.Price, V: p.Volume, S: p.Source})
}

func decodeHistory(raw string) (domain.PricePoint, error) {
	var e historyEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return domain.PricePoint{}, err
	}
	return domain.PricePoint{Time: time.UnixMilli(e.T).UTC(), Price: e.P, Volume: e.V, Source: e.S}, nil
}

// AppendHistory pushes p onto the asset's history and trims it to maxLen.
func (pc *PriceCache) AppendHistory(ctx context.Context, assetID string, p domain.PricePoint, maxLen int) error {
	data, err := encodeHistory(p)
	if err != nil {
		return fmt.Errorf("redis: marshal price point: %w", err)
	}
	key := pc.historyKey(assetID)
	pipe := pc.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	if maxLen > 0 {
		pipe.LTrim(ctx, key, int64(-maxLen), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: append history %s: %w", assetID, err)
	}
	return nil
}

// History returns the cached points at or after since, oldest first.
// It returns domain.ErrNotFound when no history exists.
func (pc *PriceCache) History(ctx context.Context, assetID string, since time.Time) ([]domain.PricePoint, error) {
	raw, err := pc.rdb.LRange(ctx, pc.historyKey(assetID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read history %s: %w", assetID, err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.PricePoint, 0, len(raw))
	for _, r := range raw {
		p, err := decodeHistory(r)
		if err != nil {
			continue
		}
		if p.Time.Before(since) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
