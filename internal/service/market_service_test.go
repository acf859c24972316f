package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

type fakeLister struct {
	markets []domain.Market
	err     error
	calls   int
}

func (f *fakeLister) SeriesMarkets(context.Context, string) ([]domain.Market, error) {
	f.calls++
	return f.markets, f.err
}

type fakeQuoter struct {
	prices map[string]float64
}

func (f fakeQuoter) Price(_ context.Context, token, _ string) (float64, error) {
	p, ok := f.prices[token]
	if !ok {
		return 0, errors.New("no quote")
	}
	return p, nil
}

type memMarketCache struct {
	m map[time.Time]domain.Market
}

func (c *memMarketCache) SetCurrent(_ context.Context, interval time.Time, m domain.Market, _ time.Duration) error {
	c.m[interval] = m
	return nil
}

func (c *memMarketCache) GetCurrent(_ context.Context, interval time.Time) (domain.Market, error) {
	m, ok := c.m[interval]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func market(id string, end time.Time) domain.Market {
	return domain.Market{
		ID:       id,
		TokenIDs: [2]string{id + "-up", id + "-down"},
		Prices:   [2]float64{0.5, 0.5},
		EndTime:  end,
	}
}

func TestMarketServiceCurrent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	lister := &fakeLister{markets: []domain.Market{
		market("next", now.Add(25*time.Minute)),
		market("now", now.Add(10*time.Minute)),
		market("ending", now.Add(2*time.Minute)),
	}}
	cache := &memMarketCache{m: map[time.Time]domain.Market{}}
	quoter := fakeQuoter{prices: map[string]float64{"now-up": 0.56}}
	svc := NewMarketService(MarketServiceConfig{SeriesID: "10192", IntervalMinutes: 15, MinMinutesLeft: 3, MaxMinutesLeft: 12},
		lister, quoter, cache, discardLogger())

	m, err := svc.Current(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "now", m.ID)
	assert.Equal(t, 0.56, m.Prices[domain.OutcomeUp])
	assert.Equal(t, 0.5, m.Prices[domain.OutcomeDown], "failed quote keeps listed price")

	// second call in the same interval is served from the cache
	_, err = svc.Current(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, lister.calls)
	assert.Contains(t, cache.m, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestMarketServiceNoMarket(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 13, 0, 0, time.UTC)
	lister := &fakeLister{markets: []domain.Market{market("ending", now.Add(2*time.Minute))}}
	svc := NewMarketService(MarketServiceConfig{MinMinutesLeft: 3, MaxMinutesLeft: 12}, lister, nil, nil, discardLogger())

	_, err := svc.Current(context.Background(), now)
	assert.True(t, errors.Is(err, domain.ErrNoMarket))

	lister.err = errors.New("gamma down")
	_, err = svc.Current(context.Background(), now)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNoMarket))
}
