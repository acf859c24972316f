package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

const timeLayout = time.RFC3339

// JournalReader serves recent journal rows, newest first.
type JournalReader interface {
	RecentSignals(ctx context.Context, limit int) ([]domain.Signal, error)
	RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)
}

// JournalHandler serves /api/signals and /api/trades.
type JournalHandler struct {
	journal JournalReader
	logger  *slog.Logger
}

// NewJournalHandler creates a JournalHandler.
func NewJournalHandler(journal JournalReader, logger *slog.Logger) *JournalHandler {
	return &JournalHandler{journal: journal, logger: logger.With(slog.String("handler", "journal"))}
}

// SignalView is the API form of a signal.
type SignalView struct {
	ID              string   `json:"id"`
	Timestamp       string   `json:"timestamp"`
	Signal          string   `json:"signal"`
	Confidence      string   `json:"confidence"`
	PositionSize    float64  `json:"position_size"`
	Price           float64  `json:"price"`
	RSI             *float64 `json:"rsi"`
	VWAPDeviation   *float64 `json:"vwap_deviation_pct"`
	MomentumPct     *float64 `json:"momentum_pct"`
	Trend           string   `json:"trend"`
	DataPoints      int      `json:"data_points"`
	BuyVotes        int      `json:"buy_votes"`
	SellVotes       int      `json:"sell_votes"`
	EntryWindowOpen bool     `json:"entry_window_open"`
	IntervalMinutes int      `json:"interval_minutes"`
	Hint            string   `json:"hint,omitempty"`
	Reasons         []string `json:"reasons"`
}

// TradeView is the API form of a trade journal row.
type TradeView struct {
	ID           int64    `json:"id"`
	Timestamp    string   `json:"timestamp"`
	Interval     string   `json:"interval"`
	Signal       string   `json:"signal"`
	Confidence   string   `json:"confidence"`
	Direction    string   `json:"direction"`
	SizeUSD      float64  `json:"size_usd"`
	EntryPrice   float64  `json:"entry_price"`
	TokenID      string   `json:"token_id"`
	OrderID      string   `json:"order_id"`
	PaperMode    bool     `json:"paper_mode"`
	BalanceAfter float64  `json:"balance_after"`
	PnL          *float64 `json:"pnl"`
	Outcome      string   `json:"outcome,omitempty"`
	Reasons      []string `json:"reasons"`
}

func toSignalView(s domain.Signal) SignalView {
	v := SignalView{
		ID:              s.ID,
		Timestamp:       s.Time.UTC().Format(timeLayout),
		Signal:          string(s.Decision),
		Confidence:      string(s.Confidence),
		PositionSize:    s.PositionSize,
		Price:           s.Indicators.CurrentPrice,
		RSI:             s.Indicators.RSI,
		VWAPDeviation:   s.Indicators.VWAPDeviationPct,
		MomentumPct:     s.Indicators.MomentumPct,
		Trend:           string(s.Indicators.Trend),
		DataPoints:      s.Indicators.SampleCount,
		BuyVotes:        s.BuyVotes,
		SellVotes:       s.SellVotes,
		EntryWindowOpen: s.EntryWindowOpen,
		IntervalMinutes: s.IntervalMinutes,
		Reasons:         lo.Ternary(s.Reasons == nil, []string{}, s.Reasons),
	}
	if s.Hint != nil {
		v.Hint = string(s.Hint.Direction) + "/" + string(s.Hint.Confidence)
	}
	return v
}

func toTradeView(t domain.TradeRecord) TradeView {
	return TradeView{
		ID:           t.ID,
		Timestamp:    t.Time.UTC().Format(timeLayout),
		Interval:     t.Interval.UTC().Format(timeLayout),
		Signal:       string(t.Decision),
		Confidence:   string(t.Confidence),
		Direction:    string(t.Direction),
		SizeUSD:      t.SizeUSD,
		EntryPrice:   t.EntryPrice,
		TokenID:      t.TokenID,
		OrderID:      t.OrderID,
		PaperMode:    t.Paper,
		BalanceAfter: t.BalanceAfter,
		PnL:          t.PnL,
		Outcome:      t.Outcome,
		Reasons:      lo.Ternary(t.Reasons == nil, []string{}, t.Reasons),
	}
}

// ListSignals returns recent signals.
// GET /api/signals?limit=N
func (h *JournalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	rows, err := h.journal.RecentSignals(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list signals failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signals": lo.Map(rows, func(s domain.Signal, _ int) SignalView { return toSignalView(s) }),
		"count":   len(rows),
	})
}

// ListTrades returns recent trade rows.
// GET /api/trades?limit=N
func (h *JournalHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	rows, err := h.journal.RecentTrades(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": lo.Map(rows, func(t domain.TradeRecord, _ int) TradeView { return toTradeView(t) }),
		"count":  len(rows),
	})
}
