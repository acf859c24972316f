package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

const tol = 1e-9

// Reference series used across tests.
// Deltas: +1, -2, +3, +1, -2, +3
var series = []float64{100, 101, 99, 102, 103, 101, 104}

func TestRSI_InsufficientData(t *testing.T) {
	for n := 0; n <= 14; n++ {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = 100 + float64(i)
		}
		_, ok := RSI(prices, 14)
		assert.False(t, ok, "len=%d must not produce an RSI", n)
	}
}

func TestRSI_LastPeriodDeltasOnly(t *testing.T) {
	// Changes over the last 3 steps: 102->103 (+1), 103->101 (-2), 101->104 (+3).
	// avgGain = 4/3, avgLoss = 2/3, RS = 2, RSI = 100 - 100/3.
	got, ok := RSI(series, 3)
	require.True(t, ok)
	assert.InDelta(t, 100-100.0/3, got, tol)

	// Prepending a large crash must not change the value: only the trailing
	// window counts.
	withCrash := append([]float64{500}, series...)
	got2, ok := RSI(withCrash, 3)
	require.True(t, ok)
	assert.InDelta(t, got, got2, tol)
}

func TestRSI_NoLossesIsMaximal(t *testing.T) {
	got, ok := RSI([]float64{1, 2, 3, 4, 5}, 4)
	require.True(t, ok)
	assert.Equal(t, 100.0, got)

	// Flat prices have zero average loss as well.
	got, ok = RSI([]float64{7, 7, 7}, 2)
	require.True(t, ok)
	assert.Equal(t, 100.0, got)
}

func TestRSI_AllLossesIsZero(t *testing.T) {
	got, ok := RSI([]float64{5, 4, 3, 2}, 3)
	require.True(t, ok)
	assert.InDelta(t, 0.0, got, tol)
}

func TestVWAP(t *testing.T) {
	t.Run("zero volume falls back to mean", func(t *testing.T) {
		vols := make([]float64, len(series))
		got, ok := VWAP(series, vols)
		require.True(t, ok)
		assert.InDelta(t, 710.0/7, got, tol)
	})

	t.Run("unit volume equals mean", func(t *testing.T) {
		vols := []float64{1, 1, 1, 1, 1, 1, 1}
		got, ok := VWAP(series, vols)
		require.True(t, ok)
		assert.InDelta(t, 710.0/7, got, tol)
	})

	t.Run("weighted", func(t *testing.T) {
		// (10*1 + 20*3) / 4 = 17.5
		got, ok := VWAP([]float64{10, 20}, []float64{1, 3})
		require.True(t, ok)
		assert.InDelta(t, 17.5, got, tol)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, ok := VWAP([]float64{1, 2}, []float64{1})
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := VWAP(nil, nil)
		assert.False(t, ok)
	})
}

func TestMomentum(t *testing.T) {
	prices := make([]float64, 13)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	// offset = 60s/5s = 12 samples; needs 13 points.
	got, ok := Momentum(prices, 60*time.Second, 5*time.Second)
	require.True(t, ok)
	assert.InDelta(t, (112.0-100.0)/100.0*100, got, tol)

	_, ok = Momentum(prices[:12], 60*time.Second, 5*time.Second)
	assert.False(t, ok)

	// A zero-valued result is still a result.
	flat := []float64{50, 50, 50}
	got, ok = Momentum(flat, 10*time.Second, 5*time.Second)
	require.True(t, ok)
	assert.Equal(t, 0.0, got)

	_, ok = Momentum([]float64{0, 1, 2}, 10*time.Second, 5*time.Second)
	assert.False(t, ok, "a zero reference price has no percentage change")
}

func TestMomentumSince_IrregularSpacing(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	points := []domain.PricePoint{
		{Time: t0, Price: 100},
		{Time: t0.Add(20 * time.Second), Price: 101},
		{Time: t0.Add(50 * time.Second), Price: 102},
		{Time: t0.Add(55 * time.Second), Price: 103},
		{Time: t0.Add(80 * time.Second), Price: 104},
	}
	// Last at t0+80s; newest point at or before t0+20s is 101.
	got, ok := MomentumSince(points, 60*time.Second)
	require.True(t, ok)
	assert.InDelta(t, (104.0-101.0)/101.0*100, got, tol)

	_, ok = MomentumSince(points, 2*time.Minute)
	assert.False(t, ok)
}

func TestChangePerSecond(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	points := []domain.PricePoint{
		{Time: t0, Price: 100},
		{Time: t0.Add(40 * time.Second), Price: 120},
	}
	got, ok := ChangePerSecond(points)
	require.True(t, ok)
	assert.InDelta(t, 0.5, got, tol)

	_, ok = ChangePerSecond(points[:1])
	assert.False(t, ok)
}

func TestSMA(t *testing.T) {
	got, ok := SMA(series, 3)
	require.True(t, ok)
	assert.InDelta(t, (103.0+101+104)/3, got, tol)

	_, ok = SMA(series, 8)
	assert.False(t, ok)
}

func TestEMA(t *testing.T) {
	// k = 0.5, seed = (100+101+99)/3 = 100
	// 102 -> 101, 103 -> 102, 101 -> 101.5, 104 -> 102.75
	got, ok := EMA(series, 3)
	require.True(t, ok)
	assert.InDelta(t, 102.75, got, tol)

	// Exactly period values: EMA equals the SMA seed.
	got, ok = EMA(series[:3], 3)
	require.True(t, ok)
	assert.InDelta(t, 100.0, got, tol)

	_, ok = EMA(series[:2], 3)
	assert.False(t, ok)
}

func TestClassifyTrend(t *testing.T) {
	up := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	assert.Equal(t, domain.TrendUp, ClassifyTrend(up, 5, 20, 0.05))

	down := make([]float64, 20)
	for i := range down {
		down[i] = 200 - float64(i)
	}
	assert.Equal(t, domain.TrendDown, ClassifyTrend(down, 5, 20, 0.05))

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}
	assert.Equal(t, domain.TrendNeutral, ClassifyTrend(flat, 5, 20, 0.05))

	// Not enough data for the long average.
	assert.Equal(t, domain.TrendNeutral, ClassifyTrend(series, 5, 20, 0.05))
}

func TestVWAPDeviation(t *testing.T) {
	assert.InDelta(t, 1.0, VWAPDeviation(101, 100), tol)
	assert.InDelta(t, -2.0, VWAPDeviation(98, 100), tol)
	assert.Equal(t, 0.0, VWAPDeviation(98, 0))
}
