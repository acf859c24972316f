// Package indicator computes technical indicators over a trailing price
// window. Every function is pure. A false second return value means the
// indicator is not available for the given input; zero is a valid value and
// never stands in for "missing".
package indicator

import (
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// RSI returns the relative strength index computed from the last period
// price changes only. Average gain and loss are plain means over that
// trailing window. When there were no losses the result is 100.
func RSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	p := float64(period)
	avgGain := gains / p
	avgLoss := losses / p
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// VWAP returns sum(price*volume)/sum(volume). With zero total volume it
// falls back to the unweighted mean. The slices must have equal, non-zero
// length.
func VWAP(prices, volumes []float64) (float64, bool) {
	if len(prices) == 0 || len(prices) != len(volumes) {
		return 0, false
	}

	var pv, vol, sum float64
	for i, p := range prices {
		pv += p * volumes[i]
		vol += volumes[i]
		sum += p
	}
	if vol == 0 {
		return sum / float64(len(prices)), true
	}
	return pv / vol, true
}

// Momentum returns the percentage change between the last price and the
// price lookback/sampleInterval samples earlier. It assumes uniform
// sampling.
func Momentum(prices []float64, lookback, sampleInterval time.Duration) (float64, bool) {
	if sampleInterval <= 0 {
		return 0, false
	}
	offset := int(lookback / sampleInterval)
	if offset <= 0 || len(prices) < offset+1 {
		return 0, false
	}
	past := prices[len(prices)-1-offset]
	if past == 0 {
		return 0, false
	}
	last := prices[len(prices)-1]
	return (last - past) / past * 100, true
}

// MomentumSince is the elapsed-time variant of Momentum: it compares the
// last point with the newest point that is at least lookback older, so
// irregular sampling does not distort the horizon.
func MomentumSince(points []domain.PricePoint, lookback time.Duration) (float64, bool) {
	if len(points) < 2 || lookback <= 0 {
		return 0, false
	}
	last := points[len(points)-1]
	cutoff := last.Time.Add(-lookback)

	for i := len(points) - 2; i >= 0; i-- {
		if !points[i].Time.After(cutoff) {
			if points[i].Price == 0 {
				return 0, false
			}
			return (last.Price - points[i].Price) / points[i].Price * 100, true
		}
	}
	return 0, false
}

// ChangePerSecond returns the price change per second between the first and
// last points, using their actual timestamps.
func ChangePerSecond(points []domain.PricePoint) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}
	first, last := points[0], points[len(points)-1]
	elapsed := last.Time.Sub(first.Time).Seconds()
	if elapsed <= 0 {
		return 0, false
	}
	return (last.Price - first.Price) / elapsed, true
}

// SMA returns the mean of the last period prices.
func SMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}

// EMA seeds with the SMA of the first period prices and then applies
// ema = price*k + ema*(1-k) with k = 2/(period+1) over the rest.
func EMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	k := 2 / float64(period+1)

	var ema float64
	for _, p := range prices[:period] {
		ema += p
	}
	ema /= float64(period)

	for _, p := range prices[period:] {
		ema = p*k + ema*(1-k)
	}
	return ema, true
}

// ClassifyTrend compares the short and long SMAs. The short average must
// differ from the long one by more than bandPct percent to count as a trend.
// Without enough data for both averages the trend is neutral.
func ClassifyTrend(prices []float64, short, long int, bandPct float64) domain.Trend {
	s, ok := SMA(prices, short)
	if !ok {
		return domain.TrendNeutral
	}
	l, ok := SMA(prices, long)
	if !ok || l == 0 {
		return domain.TrendNeutral
	}

	diff := (s - l) / l * 100
	switch {
	case diff > bandPct:
		return domain.TrendUp
	case diff < -bandPct:
		return domain.TrendDown
	default:
		return domain.TrendNeutral
	}
}

// VWAPDeviation returns the percentage distance of price from vwap, or 0
// when vwap is 0.
func VWAPDeviation(price, vwap float64) float64 {
	if vwap == 0 {
		return 0
	}
	return (price - vwap) / vwap * 100
}
