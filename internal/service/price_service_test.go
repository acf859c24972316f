package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
	"github.com/optimizeforall/polymarket-bot/internal/strategy"
)

type stubSource struct {
	name  string
	price float64
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) (domain.PricePoint, error) {
	s.calls++
	if s.err != nil {
		return domain.PricePoint{}, s.err
	}
	return domain.PricePoint{Price: s.price, Volume: 1}, nil
}

type memPriceCache struct {
	history []domain.PricePoint
	last    float64
}

func (c *memPriceCache) SetPrice(_ context.Context, _ string, price float64, _ time.Time) error {
	c.last = price
	return nil
}

func (c *memPriceCache) GetPrice(context.Context, string) (float64, time.Time, error) {
	return c.last, time.Time{}, nil
}

func (c *memPriceCache) AppendHistory(_ context.Context, _ string, p domain.PricePoint, _ int) error {
	c.history = append(c.history, p)
	return nil
}

func (c *memPriceCache) History(_ context.Context, _ string, since time.Time) ([]domain.PricePoint, error) {
	var out []domain.PricePoint
	for _, p := range c.history {
		if !p.Time.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func testPriceConfig() PriceServiceConfig {
	cfg := DefaultPriceServiceConfig()
	cfg.Retries = 2
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestPriceServiceFallsBackInOrder(t *testing.T) {
	primary := &stubSource{name: "cryptocompare", err: errors.New("timeout")}
	secondary := &stubSource{name: "chainlink", price: 67000}
	third := &stubSource{name: "coincap", price: 1}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewPriceService(testPriceConfig(), []domain.PriceSource{primary, secondary, third},
		strategy.NewPriceTracker(100, time.Hour), nil, nil, nil, discardLogger()).
		WithClock(func() time.Time { return now })

	p, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 67000.0, p.Price)
	assert.Equal(t, "chainlink", p.Source)
	assert.Equal(t, now, p.Time)
	assert.Equal(t, 0, third.calls)
}

func TestPriceServiceAllSourcesFailed(t *testing.T) {
	a := &stubSource{name: "a", err: errors.New("boom")}
	b := &stubSource{name: "b", price: -1}
	tracker := strategy.NewPriceTracker(100, time.Hour)
	svc := NewPriceService(testPriceConfig(), []domain.PriceSource{a, b}, tracker, nil, nil, nil, discardLogger())

	err := svc.Sample(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAllSourcesFailed))
	assert.Equal(t, 2, a.calls, "chain retried")
	assert.Equal(t, 0, tracker.Len(), "history untouched")
}

func TestPriceServiceRecordMirrorsAndWarms(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := &memPriceCache{}
	bus := newMemBus()
	svc := NewPriceService(testPriceConfig(), nil, strategy.NewPriceTracker(100, time.Hour), cache, bus, nil, discardLogger()).
		WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		assert.True(t, svc.Record(ctx, domain.PricePoint{Time: now.Add(time.Duration(i-3) * time.Minute), Price: 100 + float64(i), Volume: 1}))
	}
	assert.False(t, svc.Record(ctx, domain.PricePoint{Time: now.Add(-time.Hour), Price: 99}), "out of order")
	assert.Len(t, cache.history, 3)
	assert.Equal(t, 102.0, cache.last)
	assert.Len(t, bus.published["prices"], 3)

	fresh := NewPriceService(testPriceConfig(), nil, strategy.NewPriceTracker(100, time.Hour), cache, nil, nil, discardLogger()).
		WithClock(func() time.Time { return now })
	n, err := fresh.WarmFromCache(ctx, 150*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	last, ok := fresh.Last()
	require.True(t, ok)
	assert.Equal(t, 102.0, last.Price)
}

func TestPriceServiceIndicatorsInsufficientData(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewPriceService(testPriceConfig(), nil, strategy.NewPriceTracker(100, time.Hour), nil, nil, nil, discardLogger()).
		WithClock(func() time.Time { return now })
	svc.Seed([]domain.PricePoint{{Time: now.Add(-time.Second), Price: 100, Volume: 1}})

	snap, err := svc.Indicators(context.Background(), 10*time.Minute)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
	assert.Equal(t, 100.0, snap.CurrentPrice)
	assert.Equal(t, 1, snap.SampleCount)
	assert.Nil(t, snap.RSI)
}

func TestPriceServiceIndicatorsVolatility(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewPriceService(testPriceConfig(), nil, strategy.NewPriceTracker(100, time.Hour), nil, nil, nil, discardLogger()).
		WithClock(func() time.Time { return now })
	svc.Seed([]domain.PricePoint{
		{Time: now.Add(-20 * time.Minute), Price: 500, Volume: 1},
		{Time: now.Add(-10 * time.Second), Price: 98, Volume: 1},
		{Time: now.Add(-5 * time.Second), Price: 102, Volume: 1},
	})

	snap, err := svc.Indicators(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, snap.Volatility)
	assert.InDelta(t, 2.0, *snap.Volatility, 1e-9, "only the window counts")
}

func TestPriceServiceSettlementPrice(t *testing.T) {
	end := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	svc := NewPriceService(testPriceConfig(), nil, strategy.NewPriceTracker(100, time.Hour), nil, nil, nil, discardLogger())
	svc.Seed([]domain.PricePoint{
		{Time: end.Add(-30 * time.Second), Price: 100},
		{Time: end.Add(-5 * time.Second), Price: 101},
		{Time: end.Add(5 * time.Second), Price: 102},
	})

	p, ok := svc.SettlementPrice(end)
	require.True(t, ok)
	assert.Equal(t, 101.0, p)

	_, ok = svc.SettlementPrice(end.Add(-10 * time.Minute))
	assert.False(t, ok, "no sample at or before")

	_, ok = svc.SettlementPrice(end.Add(10 * time.Minute))
	assert.False(t, ok, "newest prior sample too old")
}
