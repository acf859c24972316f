package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSignal(domain.Signal{})
		m.ObserveOrder(domain.TradeModePaper, true)
		m.ObserveBlocked("risk")
		m.ObserveSettlement(domain.Position{})
		m.ObserveRisk(domain.RiskStatus{})
		m.ObserveHalt()
		m.ObserveFetch("binance", time.Second, nil)
		m.ObserveTick(time.Second)
		m.ObserveNotifyFailure()
		m.ObserveJournalFailure("csv")
	})
}

func TestObserve(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveSignal(domain.Signal{
		Decision:   domain.DecisionBuy,
		Confidence: domain.ConfidenceHigh,
		BuyVotes:   3,
		Indicators: domain.IndicatorSnapshot{CurrentPrice: 65000, SampleCount: 120},
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("BUY", "HIGH")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues("buy")))
	assert.Equal(t, 65000.0, testutil.ToFloat64(m.LastPrice))

	m.ObserveSettlement(domain.Position{Outcome: domain.OutcomeLoss, RealizedPnL: -7})
	m.ObserveSettlement(domain.Position{Outcome: domain.OutcomeWin, RealizedPnL: 7})
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RealizedLoss))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RealizedPnL))

	m.ObserveRisk(domain.RiskStatus{Capital: 93, Halted: true, OpenPositions: 1})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Halted))
	assert.Equal(t, 93.0, testutil.ToFloat64(m.Capital))
}

func TestHandler(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveHalt()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "polybot_halts_total 1"))
}
