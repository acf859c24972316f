package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

func points(prices []float64, volume float64, step time.Duration) []domain.PricePoint {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	out := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = domain.PricePoint{Time: t0.Add(time.Duration(i) * step), Price: p, Volume: volume}
	}
	return out
}

func TestCompute_Empty(t *testing.T) {
	snap := Compute(nil, DefaultConfig())
	assert.Equal(t, 0, snap.SampleCount)
	assert.Nil(t, snap.RSI)
	assert.Nil(t, snap.VWAP)
	assert.Nil(t, snap.VWAPDeviationPct)
	assert.Nil(t, snap.MomentumPct)
	assert.Equal(t, domain.TrendNeutral, snap.Trend)
}

func TestCompute_ShortWindowLeavesIndicatorsAbsent(t *testing.T) {
	snap := Compute(points(series, 0, 5*time.Second), DefaultConfig())

	assert.Equal(t, 7, snap.SampleCount)
	assert.Equal(t, 104.0, snap.CurrentPrice)
	assert.Nil(t, snap.RSI, "RSI(14) needs 15 prices")
	assert.Nil(t, snap.MomentumPct, "60s momentum needs 13 samples")
	assert.Nil(t, snap.SMALong)
	require.NotNil(t, snap.VWAP, "zero volume degrades to the mean")
	assert.InDelta(t, 710.0/7, *snap.VWAP, tol)
	require.NotNil(t, snap.VWAPDeviationPct)
	assert.InDelta(t, VWAPDeviation(104, 710.0/7), *snap.VWAPDeviationPct, tol)
	require.NotNil(t, snap.PriceChangePerSec)
	assert.InDelta(t, 4.0/30.0, *snap.PriceChangePerSec, tol)
}

func TestCompute_FullWindow(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.1
	}
	snap := Compute(points(prices, 2, 5*time.Second), DefaultConfig())

	require.NotNil(t, snap.RSI)
	assert.Equal(t, 100.0, *snap.RSI)
	require.NotNil(t, snap.MomentumPct)
	want := (prices[39] - prices[27]) / prices[27] * 100
	assert.InDelta(t, want, *snap.MomentumPct, tol)
	assert.Equal(t, domain.TrendUp, snap.Trend)
	require.NotNil(t, snap.EMA)
	require.NotNil(t, snap.SMAShort)
	require.NotNil(t, snap.SMALong)
}

func TestCompute_TimeMomentum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MomentumMode = MomentumTime

	prices := make([]float64, 10)
	for i := range prices {
		prices[i] = 200 + float64(i)
	}
	// 10s spacing: 60s back from the last point (index 9) is index 3.
	snap := Compute(points(prices, 1, 10*time.Second), cfg)
	require.NotNil(t, snap.MomentumPct)
	assert.InDelta(t, (209.0-203.0)/203.0*100, *snap.MomentumPct, tol)

	// Count mode would have needed 13 samples.
	cfg.MomentumMode = MomentumCount
	snap = Compute(points(prices, 1, 10*time.Second), cfg)
	assert.Nil(t, snap.MomentumPct)
}
