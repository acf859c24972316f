package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
	"github.com/optimizeforall/polymarket-bot/internal/metrics"
)

// Streams the journal publishes to on the signal bus.
const (
	SignalStream = "signals"
	TradeStream  = "trades"
)

const recentCap = 200

// TradeService is the journal of the loop. Every signal and trade row goes
// to the CSV journal and, when configured, to postgres and the redis
// stream. It also keeps the most recent rows in memory for the status API.
type TradeService struct {
	file    domain.Journal     // optional
	signals domain.SignalStore // optional
	trades  domain.TradeStore  // optional
	bus     domain.SignalBus   // optional
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu           sync.Mutex
	recentSig    []domain.Signal
	recentTrades []domain.TradeRecord
}

// NewTradeService creates a TradeService. Any sink may be nil.
func NewTradeService(
	file domain.Journal,
	signals domain.SignalStore,
	trades domain.TradeStore,
	bus domain.SignalBus,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		file:    file,
		signals: signals,
		trades:  trades,
		bus:     bus,
		metrics: m,
		logger:  logger.With(slog.String("component", "trade_service")),
	}
}

// RecordSignal journals one decision. A failing sink does not stop the
// others; all failures are returned joined.
func (s *TradeService) RecordSignal(ctx context.Context, sig domain.Signal) error {
	s.mu.Lock()
	s.recentSig = pushBounded(s.recentSig, sig)
	s.mu.Unlock()

	var errs []error
	if s.file != nil {
		errs = append(errs, s.observe("csv", s.file.RecordSignal(ctx, sig)))
	}
	if s.signals != nil {
		errs = append(errs, s.observe("postgres", s.signals.Insert(ctx, sig)))
	}
	if s.bus != nil {
		payload, _ := json.Marshal(SignalEvent(sig))
		errs = append(errs, s.observe("redis", s.bus.StreamAppend(ctx, SignalStream, payload)))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("trade_service: record signal: %w", err)
	}
	return nil
}

// RecordTrade journals one executed or settled trade.
func (s *TradeService) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	s.mu.Lock()
	s.recentTrades = pushBounded(s.recentTrades, rec)
	s.mu.Unlock()

	var errs []error
	if s.file != nil {
		errs = append(errs, s.observe("csv", s.file.RecordTrade(ctx, rec)))
	}
	if s.trades != nil {
		errs = append(errs, s.observe("postgres", s.trades.Insert(ctx, rec)))
	}
	if s.bus != nil {
		payload, _ := json.Marshal(TradeEvent(rec))
		errs = append(errs, s.observe("redis", s.bus.StreamAppend(ctx, TradeStream, payload)))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("trade_service: record trade: %w", err)
	}
	return nil
}

// RecentSignals returns the newest signals first, from postgres when it is
// configured and from memory otherwise.
func (s *TradeService) RecentSignals(ctx context.Context, limit int) ([]domain.Signal, error) {
	if s.signals != nil {
		out, err := s.signals.ListRecent(ctx, domain.ListOpts{Limit: limit})
		if err == nil {
			return out, nil
		}
		s.logger.WarnContext(ctx, "signal store read failed, serving memory", slog.String("error", err.Error()))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.recentSig, limit), nil
}

// RecentTrades returns the newest trade rows first.
func (s *TradeService) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if s.trades != nil {
		out, err := s.trades.ListRecent(ctx, domain.ListOpts{Limit: limit})
		if err == nil {
			return out, nil
		}
		s.logger.WarnContext(ctx, "trade store read failed, serving memory", slog.String("error", err.Error()))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.recentTrades, limit), nil
}

func (s *TradeService) observe(sink string, err error) error {
	if err == nil {
		return nil
	}
	s.metrics.ObserveJournalFailure(sink)
	return fmt.Errorf("%s: %w", sink, err)
}

// SignalEvent is the wire form of a signal on the bus and the websocket.
func SignalEvent(sig domain.Signal) map[string]any {
	ev := map[string]any{
		"event":             "signal",
		"id":                sig.ID,
		"timestamp":         sig.Time.UTC().Format(time.RFC3339),
		"signal":            string(sig.Decision),
		"confidence":        string(sig.Confidence),
		"position_size":     sig.PositionSize,
		"buy_votes":         sig.BuyVotes,
		"sell_votes":        sig.SellVotes,
		"entry_window_open": sig.EntryWindowOpen,
		"interval_minutes":  sig.IntervalMinutes,
		"price":             sig.Indicators.CurrentPrice,
		"data_points":       sig.Indicators.SampleCount,
		"reasons":           sig.Reasons,
	}
	if v := sig.Indicators.RSI; v != nil {
		ev["rsi"] = *v
	}
	if v := sig.Indicators.VWAPDeviationPct; v != nil {
		ev["vwap_deviation_pct"] = *v
	}
	if v := sig.Indicators.MomentumPct; v != nil {
		ev["momentum_60s"] = *v
	}
	return ev
}

// TradeEvent is the wire form of a trade row.
func TradeEvent(rec domain.TradeRecord) map[string]any {
	ev := map[string]any{
		"event":         "trade",
		"timestamp":     rec.Time.UTC().Format(time.RFC3339),
		"interval":      rec.Interval.UTC().Format(time.RFC3339),
		"signal":        string(rec.Decision),
		"confidence":    string(rec.Confidence),
		"direction":     string(rec.Direction),
		"size_usd":      rec.SizeUSD,
		"entry_price":   rec.EntryPrice,
		"token_id":      rec.TokenID,
		"order_id":      rec.OrderID,
		"paper_mode":    rec.Paper,
		"balance_after": rec.BalanceAfter,
		"outcome":       rec.Outcome,
	}
	if rec.PnL != nil {
		ev["pnl"] = *rec.PnL
	}
	return ev
}

func pushBounded[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > recentCap {
		s = append(s[:0:0], s[len(s)-recentCap:]...)
	}
	return s
}

func newestFirst[T any](s []T, limit int) []T {
	if limit <= 0 || limit > len(s) {
		limit = len(s)
	}
	out := make([]T, 0, limit)
	for i := len(s) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s[i])
	}
	return out
}

var _ domain.Journal = (*TradeService)(nil)
