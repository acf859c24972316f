package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "lock:polybot:paper", joinKey("", "lock", "polybot:paper"))
	assert.Equal(t, "bot1:price:BTC:history", joinKey("bot1", "price", "BTC", "history"))
}

func TestHistoryEntryRoundTrip(t *testing.T) {
	p := domain.PricePoint{
		Time:   time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC),
		Price:  67123.45,
		Volume: 1.5,
		Source: "binance_ws",
	}
	data, err := encodeHistory(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":1772366405000,"p":67123.45,"v":1.5,"s":"binance_ws"}`, string(data))

	got, err := decodeHistory(string(data))
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = decodeHistory("not json")
	require.Error(t, err)
}

func TestDecodePriceHash(t *testing.T) {
	price, ts, err := decodePriceHash("BTC", map[string]string{"price": "67000.5", "ts": "1772366405000000000"})
	require.NoError(t, err)
	assert.Equal(t, 67000.5, price)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC), ts)

	_, _, err = decodePriceHash("BTC", map[string]string{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, _, err = decodePriceHash("BTC", map[string]string{"price": "x", "ts": "1"})
	require.Error(t, err)
}

func TestToStreamMessage(t *testing.T) {
	m, ok := toStreamMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"payload": `{"event":"signal"}`}})
	require.True(t, ok)
	assert.Equal(t, "1-0", m.ID)
	assert.Equal(t, `{"event":"signal"}`, string(m.Payload))

	_, ok = toStreamMessage(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"other": "x"}})
	assert.False(t, ok)
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
}

func TestSignalBusNamespacesChannels(t *testing.T) {
	sb := &SignalBus{prefix: "polybot"}
	assert.Equal(t, "polybot:bus:prices", sb.channel("prices"))
	assert.Equal(t, "polybot:stream:trades", sb.stream("trades"))

	bare := &SignalBus{}
	assert.Equal(t, "bus:orders", bare.channel("orders"))
}

func TestDecodeSnapshotKeepsPositions(t *testing.T) {
	end := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	snap, err := decodeSnapshot([]byte(`{"Risk":{"CurrentCapital":93,"OpenPositions":1,"Day":"2026-03-01"},` +
		`"Positions":[{"ID":"p1","Direction":"UP","SizeUSD":7,"EntryPrice":0.5,"IntervalEnd":"2026-03-01T12:15:00Z"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 93.0, snap.Risk.CurrentCapital)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "p1", snap.Positions[0].ID)
	assert.True(t, end.Equal(snap.Positions[0].IntervalEnd))

	_, err = decodeSnapshot([]byte("{"))
	require.Error(t, err)
}
