package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/samber/lo"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// Kline is one candle in float form.
type Kline struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Binance reads spot market data through the public REST API. It serves as a
// price source, as the startup backfill and as the kline provider for the
// directional-hint context.
type Binance struct {
	client *binance.Client
	symbol string
}

// NewBinance creates a Binance source for symbol (e.g. BTCUSDT). No API key
// is needed for public endpoints.
func NewBinance(symbol string) *Binance {
	return &Binance{
		client: binance.NewClient("", ""),
		symbol: strings.ToUpper(symbol),
	}
}

// WithBaseURL points the client at a different REST host.
func (b *Binance) WithBaseURL(u string) *Binance {
	b.client.BaseURL = strings.TrimRight(u, "/")
	return b
}

// Name returns the source identifier.
func (b *Binance) Name() string { return "binance" }

// Fetch returns the last price and 24h base volume from ticker/24hr.
func (b *Binance) Fetch(ctx context.Context) (domain.PricePoint, error) {
	stats, err := b.client.NewListPriceChangeStatsService().Symbol(b.symbol).Do(ctx)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("binance: ticker 24hr: %w", err)
	}
	st, ok := lo.Find(stats, func(s *binance.PriceChangeStats) bool { return s.Symbol == b.symbol })
	if !ok {
		return domain.PricePoint{}, fmt.Errorf("binance: symbol %s not in ticker response", b.symbol)
	}
	price, err := strconv.ParseFloat(st.LastPrice, 64)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("binance: parse last price: %w", err)
	}
	volume, _ := strconv.ParseFloat(st.Volume, 64)
	return domain.PricePoint{
		Time:   time.Now().UTC(),
		Price:  price,
		Volume: volume,
		Source: b.Name(),
	}, nil
}

// Klines returns up to limit candles of the given interval (e.g. "1h").
func (b *Binance) Klines(ctx context.Context, interval string, limit int) ([]Kline, error) {
	raw, err := b.client.NewKlinesService().Symbol(b.symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", interval, err)
	}
	return lo.Map(raw, func(k *binance.Kline, _ int) Kline { return toKline(k) }), nil
}

// Backfill rebuilds samples for the last lookback from 1s klines: every
// step-th close is kept and the volume of the skipped seconds is summed into
// it. The result is oldest first.
func (b *Binance) Backfill(ctx context.Context, lookback, step time.Duration) ([]domain.PricePoint, error) {
	stride := int(step / time.Second)
	if stride < 1 {
		stride = 1
	}
	start := time.Now().Add(-lookback)
	var klines []Kline
	for {
		raw, err := b.client.NewKlinesService().
			Symbol(b.symbol).
			Interval("1s").
			StartTime(start.UnixMilli()).
			Limit(1000).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance: backfill klines: %w", err)
		}
		if len(raw) == 0 {
			break
		}
		for _, k := range raw {
			klines = append(klines, toKline(k))
		}
		last := raw[len(raw)-1]
		start = time.UnixMilli(last.OpenTime).Add(time.Second)
		if len(raw) < 1000 || !start.Before(time.Now()) {
			break
		}
	}
	return Downsample(klines, stride), nil
}

// Downsample folds consecutive klines into groups of stride, keeping the
// close and open time of the group's last candle and the summed volume.
func Downsample(klines []Kline, stride int) []domain.PricePoint {
	if stride < 1 {
		stride = 1
	}
	chunks := lo.Chunk(klines, stride)
	return lo.FilterMap(chunks, func(c []Kline, _ int) (domain.PricePoint, bool) {
		last := c[len(c)-1]
		if !(last.Close > 0) {
			return domain.PricePoint{}, false
		}
		return domain.PricePoint{
			Time:   last.OpenTime.UTC(),
			Price:  last.Close,
			Volume: lo.SumBy(c, func(k Kline) float64 { return k.Volume }),
			Source: "binance_backfill",
		}, true
	})
}

func toKline(k *binance.Kline) Kline {
	open, _ := strconv.ParseFloat(k.Open, 64)
	high, _ := strconv.ParseFloat(k.High, 64)
	low, _ := strconv.ParseFloat(k.Low, 64)
	cl, _ := strconv.ParseFloat(k.Close, 64)
	vol, _ := strconv.ParseFloat(k.Volume, 64)
	return Kline{
		OpenTime: time.UnixMilli(k.OpenTime),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    cl,
		Volume:   vol,
	}
}

var _ domain.PriceSource = (*Binance)(nil)
