package domain

import "time"

// Trend classifies the short-vs-long moving average relationship.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
)

// IndicatorSnapshot is derived fresh from the trailing price window on each
// evaluation. A nil pointer field means the indicator was not available
// (too few samples); it is never encoded as zero.
type IndicatorSnapshot struct {
	Time              time.Time
	CurrentPrice      float64
	RSI               *float64
	VWAP              *float64
	VWAPDeviationPct  *float64
	MomentumPct       *float64
	SMAShort          *float64
	SMALong           *float64
	EMA               *float64
	Trend             Trend
	PriceChangePerSec *float64
	Volatility        *float64 // stddev of price over the window, USD
	SampleCount       int
	WindowStart       time.Time
}

// Float returns a pointer to v. It is used to populate optional indicator
// fields.
func Float(v float64) *float64 {
	return &v
}
