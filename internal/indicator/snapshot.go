package indicator

import (
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// MomentumMode selects how the momentum horizon is measured.
type MomentumMode string

const (
	// MomentumCount looks back a fixed number of samples.
	MomentumCount MomentumMode = "count"
	// MomentumTime looks back by timestamp.
	MomentumTime MomentumMode = "time"
)

// Config holds the indicator parameters used to build a snapshot.
type Config struct {
	RSIPeriod        int
	MomentumLookback time.Duration
	SampleInterval   time.Duration
	MomentumMode     MomentumMode
	TrendShort       int
	TrendLong        int
	TrendBandPct     float64
	EMAPeriod        int
}

// DefaultConfig returns the standard parameters: RSI(14), 60s momentum on
// 5s samples, SMA 5/20 trend with a 0.05% band and EMA(12).
func DefaultConfig() Config {
	return Config{
		RSIPeriod:        14,
		MomentumLookback: 60 * time.Second,
		SampleInterval:   5 * time.Second,
		MomentumMode:     MomentumCount,
		TrendShort:       5,
		TrendLong:        20,
		TrendBandPct:     0.05,
		EMAPeriod:        12,
	}
}

// Compute derives an IndicatorSnapshot from points, oldest first. An empty
// window yields a snapshot with SampleCount 0 and every optional field nil.
func Compute(points []domain.PricePoint, cfg Config) domain.IndicatorSnapshot {
	snap := domain.IndicatorSnapshot{
		Trend:       domain.TrendNeutral,
		SampleCount: len(points),
	}
	if len(points) == 0 {
		return snap
	}

	prices := make([]float64, len(points))
	volumes := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
		volumes[i] = p.Volume
	}

	last := points[len(points)-1]
	snap.Time = last.Time
	snap.WindowStart = points[0].Time
	snap.CurrentPrice = last.Price

	if v, ok := RSI(prices, cfg.RSIPeriod); ok {
		snap.RSI = domain.Float(v)
	}
	if v, ok := VWAP(prices, volumes); ok {
		snap.VWAP = domain.Float(v)
		snap.VWAPDeviationPct = domain.Float(VWAPDeviation(last.Price, v))
	}

	switch cfg.MomentumMode {
	case MomentumTime:
		if v, ok := MomentumSince(points, cfg.MomentumLookback); ok {
			snap.MomentumPct = domain.Float(v)
		}
	default:
		if v, ok := Momentum(prices, cfg.MomentumLookback, cfg.SampleInterval); ok {
			snap.MomentumPct = domain.Float(v)
		}
	}

	if v, ok := SMA(prices, cfg.TrendShort); ok {
		snap.SMAShort = domain.Float(v)
	}
	if v, ok := SMA(prices, cfg.TrendLong); ok {
		snap.SMALong = domain.Float(v)
	}
	if v, ok := EMA(prices, cfg.EMAPeriod); ok {
		snap.EMA = domain.Float(v)
	}
	snap.Trend = ClassifyTrend(prices, cfg.TrendShort, cfg.TrendLong, cfg.TrendBandPct)

	if v, ok := ChangePerSecond(points); ok {
		snap.PriceChangePerSec = domain.Float(v)
	}
	return snap
}
