package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
	"github.com/optimizeforall/polymarket-bot/internal/server/handler"
)

type stubLoop struct{}

func (stubLoop) Status() domain.BotStatus { return domain.BotStatus{Mode: "paper"} }

type stubRisk struct{}

func (stubRisk) Status() domain.RiskStatus { return domain.RiskStatus{Capital: 100} }

type stubJournal struct{}

func (stubJournal) RecentSignals(context.Context, int) ([]domain.Signal, error) { return nil, nil }

func (stubJournal) RecentTrades(context.Context, int) ([]domain.TradeRecord, error) { return nil, nil }

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

func (denyLimiter) Wait(context.Context, string) error { return nil }

func newTestServer(cfg Config, limiter domain.RateLimiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Handlers{
		Health:  handler.NewHealthHandler(nil, logger),
		Status:  handler.NewStatusHandler(stubLoop{}, stubRisk{}),
		Journal: handler.NewJournalHandler(stubJournal{}, logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "# metrics") }),
	}
	return NewServer(cfg, h, nil, limiter, logger).Handler()
}

func TestServerAuth(t *testing.T) {
	srv := newTestServer(Config{APIKey: "secret"}, nil)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is public", "/api/health", "", http.StatusOK},
		{"metrics is public", "/metrics", "", http.StatusOK},
		{"status needs key", "/api/status", "", http.StatusUnauthorized},
		{"wrong key", "/api/status", "Bearer nope", http.StatusUnauthorized},
		{"bearer key", "/api/status", "Bearer secret", http.StatusOK},
		{"trades with key", "/api/trades", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServerRateLimitAndCORS(t *testing.T) {
	srv := newTestServer(Config{RateLimit: 10, RateWindow: time.Minute, CORSOrigins: []string{"https://dash.example"}}, denyLimiter{})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/status", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
