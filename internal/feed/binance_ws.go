package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

const (
	// BinanceStreamURL is the spot market stream host.
	BinanceStreamURL = "wss://stream.binance.com:9443/ws"

	// pongWait is the time allowed to read the next message or pong.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	writeWait = 10 * time.Second

	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// Recorder accepts completed price samples.
type Recorder interface {
	Record(ctx context.Context, p domain.PricePoint) bool
}

// aggTrade is the payload of the <symbol>@aggTrade stream.
type aggTrade struct {
	Event     string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// BinanceStream folds the aggregated trade stream into fixed-width buckets
// and records one sample per bucket: the last trade price and the summed
// quantity.
type BinanceStream struct {
	url    string
	symbol string
	bucket time.Duration
	rec    Recorder
	logger *slog.Logger
}

// NewBinanceStream creates a stream for symbol that records a sample every
// bucket.
func NewBinanceStream(url, symbol string, bucket time.Duration, rec Recorder, logger *slog.Logger) *BinanceStream {
	if url == "" {
		url = BinanceStreamURL
	}
	if bucket <= 0 {
		bucket = 5 * time.Second
	}
	return &BinanceStream{
		url:    strings.TrimRight(url, "/"),
		symbol: strings.ToLower(symbol),
		bucket: bucket,
		rec:    rec,
		logger: logger.With(slog.String("component", "binance_stream")),
	}
}

// Run keeps the stream connected until ctx is cancelled, reconnecting with
// exponential backoff.
func (s *BinanceStream) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "binance stream started", slog.String("symbol", s.symbol))
	defer s.logger.Info("binance stream stopped")

	delay := reconnectDelay
	for {
		started := time.Now()
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > maxReconnectDelay {
			delay = reconnectDelay
		}
		s.logger.WarnContext(ctx, "binance stream disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (s *BinanceStream) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url+"/"+s.symbol+"@aggTrade", nil)
	if err != nil {
		return fmt.Errorf("binance_ws: connect: %w", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Binance pings every few minutes and expects the payload echoed back.
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	b := NewBucketer(s.bucket, "binance_ws")
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("binance_ws: read: %w", domain.ErrWSDisconnect)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var t aggTrade
		if err := sonic.Unmarshal(msg, &t); err != nil || t.Event != "aggTrade" {
			continue
		}
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			continue
		}
		qty, _ := strconv.ParseFloat(t.Quantity, 64)
		if p, ok := b.Add(price, qty, time.UnixMilli(t.TradeTime)); ok {
			s.rec.Record(ctx, p)
		}
	}
}

// Bucketer folds trades into fixed-width time buckets.
type Bucketer struct {
	width  time.Duration
	source string
	start  time.Time
	price  float64
	volume float64
	open   bool
}

// NewBucketer creates a Bucketer with the given bucket width.
func NewBucketer(width time.Duration, source string) *Bucketer {
	return &Bucketer{width: width, source: source}
}

// Add folds one trade into the current bucket. When the trade belongs to a
// later bucket, the finished bucket is returned as a sample stamped at its
// end.
func (b *Bucketer) Add(price, qty float64, at time.Time) (domain.PricePoint, bool) {
	if !(price > 0) {
		return domain.PricePoint{}, false
	}
	start := at.UTC().Truncate(b.width)

	var out domain.PricePoint
	var emitted bool
	switch {
	case !b.open:
	case start.After(b.start):
		out = domain.PricePoint{
			Time:   b.start.Add(b.width),
			Price:  b.price,
			Volume: b.volume,
			Source: b.source,
		}
		emitted = true
	case start.Before(b.start):
		// Late trade for a bucket already emitted.
		return domain.PricePoint{}, false
	default:
		b.price = price
		b.volume += qty
		return domain.PricePoint{}, false
	}

	b.start = start
	b.price = price
	b.volume = qty
	b.open = true
	return out, emitted
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
