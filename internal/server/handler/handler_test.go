package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeJournal struct {
	signals []domain.Signal
	trades  []domain.TradeRecord
	limit   int
	err     error
}

func (f *fakeJournal) RecentSignals(_ context.Context, limit int) ([]domain.Signal, error) {
	f.limit = limit
	return f.signals, f.err
}

func (f *fakeJournal) RecentTrades(_ context.Context, limit int) ([]domain.TradeRecord, error) {
	f.limit = limit
	return f.trades, f.err
}

func TestListSignals(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	j := &fakeJournal{signals: []domain.Signal{{
		ID:         "s1",
		Time:       ts,
		Decision:   domain.DecisionBuy,
		Confidence: domain.ConfidenceHigh,
		Indicators: domain.IndicatorSnapshot{CurrentPrice: 60000, RSI: domain.Float(28), SampleCount: 180},
		Hint:       &domain.DirectionalHint{Direction: domain.DirectionUp, Confidence: domain.ConfidenceMedium},
	}}}
	h := NewJournalHandler(j, quietLogger())

	rec := httptest.NewRecorder()
	h.ListSignals(rec, httptest.NewRequest(http.MethodGet, "/api/signals?limit=9999", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxLimit, j.limit)

	var body struct {
		Signals []SignalView `json:"signals"`
		Count   int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Signals, 1)
	got := body.Signals[0]
	assert.Equal(t, "BUY", got.Signal)
	assert.Equal(t, "2026-03-01T12:10:00Z", got.Timestamp)
	assert.InDelta(t, 28, *got.RSI, 1e-9)
	assert.Nil(t, got.VWAPDeviation)
	assert.Equal(t, "UP/MEDIUM", got.Hint)
	assert.Equal(t, []string{}, got.Reasons)
}

func TestListTrades(t *testing.T) {
	j := &fakeJournal{trades: []domain.TradeRecord{{ID: 4, SizeUSD: 5, Paper: true, PnL: domain.Float(4.9), Outcome: domain.OutcomeWin}}}
	h := NewJournalHandler(j, quietLogger())

	rec := httptest.NewRecorder()
	h.ListTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultLimit, j.limit)
	assert.Contains(t, rec.Body.String(), `"pnl":4.9`)
	assert.Contains(t, rec.Body.String(), `"outcome":"WIN"`)

	j.err = errors.New("boom")
	rec = httptest.NewRecorder()
	h.ListTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(map[string]CheckFunc{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, quietLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Components["postgres"])
	assert.Equal(t, "connection refused", body.Components["redis"])
}

type staticLoop domain.BotStatus

func (s staticLoop) Status() domain.BotStatus { return domain.BotStatus(s) }

type staticRisk domain.RiskStatus

func (s staticRisk) Status() domain.RiskStatus { return domain.RiskStatus(s) }

func TestGetStatus(t *testing.T) {
	sig := domain.Signal{ID: "x", Decision: domain.DecisionHold, Confidence: domain.ConfidenceLow}
	h := NewStatusHandler(
		staticLoop{Mode: "paper", SessionID: "abc", SignalsGenerated: 3, LastSignal: &sig},
		staticRisk{Capital: 104, Halted: true, HaltReason: "daily loss limit"},
	)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view StatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "paper", view.Mode)
	assert.Equal(t, 3, view.SignalsGenerated)
	assert.True(t, view.Risk.Halted)
	assert.Empty(t, view.LastTick)
	require.NotNil(t, view.LastSignal)
	assert.Equal(t, "HOLD", view.LastSignal.Signal)
}
