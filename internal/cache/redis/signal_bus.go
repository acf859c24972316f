package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

const (
	defaultStreamMaxLen int64 = 10000
	subscriberBuffer          = 128
)

// SignalBus fans price, order and position events out over Pub/Sub and
// keeps the signal and trade journal rows in capped streams. Channel and
// stream names are namespaced under the key prefix so several bots can
// share one redis.
type SignalBus struct {
	rdb    *redis.Client
	prefix string
	maxLen int64
}

// NewSignalBus creates a SignalBus. A non-positive maxLen uses 10000.
func NewSignalBus(c *Client, maxLen int64) *SignalBus {
	return &SignalBus{
		rdb:    c.Underlying(),
		prefix: c.prefix,
		maxLen: lo.Ternary(maxLen > 0, maxLen, defaultStreamMaxLen),
	}
}

func (sb *SignalBus) channel(name string) string { return joinKey(sb.prefix, "bus", name) }
func (sb *SignalBus) stream(name string) string  { return joinKey(sb.prefix, "stream", name) }

func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, sb.channel(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe delivers payloads published on channel until ctx ends, then
// closes the returned channel. Glob patterns use PSUBSCRIBE. A slow reader
// blocks delivery rather than losing events.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	name := sb.channel(channel)
	var ps *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		ps = sb.rdb.PSubscribe(ctx, name)
	} else {
		ps = sb.rdb.Subscribe(ctx, name)
	}
	// The first reply confirms the subscription.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel(redis.WithChannelSize(subscriberBuffer))
		for {
			var msg *redis.Message
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				msg = m
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// StreamAppend adds payload with XADD MAXLEN ~ maxLen.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: sb.stream(stream),
		MaxLen: sb.maxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID ("0" reads from the
// start). A missing stream reads as empty.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	res, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{sb.stream(stream), lastID},
		Count:   int64(count),
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}
	var msgs []domain.StreamMessage
	for _, s := range res {
		msgs = append(msgs, lo.FilterMap(s.Messages, func(m redis.XMessage, _ int) (domain.StreamMessage, bool) {
			return toStreamMessage(m)
		})...)
	}
	return msgs, nil
}

func toStreamMessage(msg redis.XMessage) (domain.StreamMessage, bool) {
	switch v := msg.Values["payload"].(type) {
	case string:
		return domain.StreamMessage{ID: msg.ID, Payload: []byte(v)}, true
	case []byte:
		return domain.StreamMessage{ID: msg.ID, Payload: v}, true
	}
	return domain.StreamMessage{}, false
}

var _ domain.SignalBus = (*SignalBus)(nil)
