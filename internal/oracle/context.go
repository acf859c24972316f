package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/cinar/indicator"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/optimizeforall/polymarket-bot/internal/feed"
)

const klineLimit = 100

// KlineSource supplies candles for the higher timeframes.
type KlineSource interface {
	Klines(ctx context.Context, interval string, limit int) ([]feed.Kline, error)
}

// Timeframe summarizes one candle series.
type Timeframe struct {
	Interval   string
	Close      float64
	ChangePct  float64 // first to last close of the series
	EMA20      float64
	MACD       float64
	MACDSignal float64
	RSI14      float64
	Trend      string
}

// MarketContext is the multi-timeframe view handed to the decision model.
type MarketContext struct {
	Timeframes []Timeframe
}

// BuildContext fetches every interval concurrently and summarizes it. A
// failing interval fails the whole context.
func BuildContext(ctx context.Context, src KlineSource, intervals []string) (MarketContext, error) {
	out := make([]Timeframe, len(intervals))
	g, gctx := errgroup.WithContext(ctx)
	for i, iv := range intervals {
		g.Go(func() error {
			klines, err := src.Klines(gctx, iv, klineLimit)
			if err != nil {
				return fmt.Errorf("oracle: context %s: %w", iv, err)
			}
			out[i] = summarize(iv, klines)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MarketContext{}, err
	}
	return MarketContext{Timeframes: out}, nil
}

func summarize(interval string, klines []feed.Kline) Timeframe {
	closes := lo.Map(klines, func(k feed.Kline, _ int) float64 { return k.Close })
	tf := Timeframe{Interval: interval, Trend: "UNKNOWN"}
	if len(closes) == 0 {
		return tf
	}
	tf.Close = lo.LastOrEmpty(closes)
	if closes[0] > 0 {
		tf.ChangePct = (tf.Close - closes[0]) / closes[0] * 100
	}
	if len(closes) < 26 {
		return tf
	}

	ema := indicator.Ema(20, closes)
	macd, signal := indicator.Macd(closes)
	_, rsi := indicator.RsiPeriod(14, closes)
	tf.EMA20 = lo.LastOrEmpty(ema)
	tf.MACD = lo.LastOrEmpty(macd)
	tf.MACDSignal = lo.LastOrEmpty(signal)
	tf.RSI14 = lo.LastOrEmpty(rsi)

	switch {
	case tf.Close > tf.EMA20 && tf.MACD > tf.MACDSignal:
		tf.Trend = "UP"
	case tf.Close < tf.EMA20 && tf.MACD < tf.MACDSignal:
		tf.Trend = "DOWN"
	default:
		tf.Trend = "MIXED"
	}
	return tf
}

// String renders the context as prompt text.
func (c MarketContext) String() string {
	if len(c.Timeframes) == 0 {
		return "Higher timeframe context unavailable."
	}
	var b strings.Builder
	b.WriteString("## Higher timeframes (BTCUSDT)\n")
	for _, tf := range c.Timeframes {
		fmt.Fprintf(&b, "- %s: close $%.2f, change %+.2f%%, EMA20 %.2f, MACD %.2f / signal %.2f, RSI14 %.1f, trend %s\n",
			tf.Interval, tf.Close, tf.ChangePct, tf.EMA20, tf.MACD, tf.MACDSignal, tf.RSI14, tf.Trend)
	}
	return b.String()
}
