// Package metrics exposes the bot's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// Metrics holds all Prometheus collectors for the trading loop. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	DecisionsTotal *prometheus.CounterVec // labels: decision, confidence
	VotesTotal     *prometheus.CounterVec // labels: side
	OrdersTotal    *prometheus.CounterVec // labels: mode, result
	TradesBlocked  *prometheus.CounterVec // labels: reason
	SettledTotal   *prometheus.CounterVec // labels: outcome
	HaltsTotal     prometheus.Counter
	RealizedPnL    prometheus.Counter
	RealizedLoss   prometheus.Counter

	Capital       prometheus.Gauge
	DrawdownPct   prometheus.Gauge
	OpenPositions prometheus.Gauge
	Halted        prometheus.Gauge
	Samples       prometheus.Gauge
	LastPrice     prometheus.Gauge

	FeedFetchTotal  *prometheus.CounterVec // labels: source, result
	FeedFetchDur    *prometheus.HistogramVec
	TickDur         prometheus.Histogram
	NotifyFailures  prometheus.Counter
	JournalFailures *prometheus.CounterVec // labels: sink

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers all collectors on reg. A nil reg uses a
// fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polybot_decisions_total",
			Help: "Signals generated at interval decision points",
		}, []string{"decision", "confidence"}),
		VotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polybot_votes_total",
			Help: "Indicator votes cast, by side",
		}, []string{"side"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polybot_orders_total",
			Help: "Orders submitted to the order sink",
		}, []string{"mode", "result"}),
		TradesBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polybot_trades_blocked_total",
			Help: "Actionable signals not traded",
		}, []string{"reason"}),
		SettledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polybot_positions_settled_total",
			Help: "Positions settled at interval end",
		}, []string{"outcome"}),
		HaltsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polybot_halts_total",
			Help: "Risk halts observed",
		}),
		RealizedPnL: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polybot_realized_profit_usd_total",
			Help: "Cumulative realized profit of winning positions",
		}),
		RealizedLoss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polybot_realized_loss_usd_total",
			Help: "Cumulative realized loss of losing positions",
		}),
		Capital: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polybot_capital_usd",
			Help: "Current capital tracked by the risk manager",
		}),
		DrawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polybot_daily_drawdown_pct",
			Help: "Drawdown from the daily start capital",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polybot_open_positions",
			Help: "Positions awaiting settlement",
		}),
		Halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polybot_halted",
			Help: "1 while the risk manager is halted",
		}),
		Samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polybot_price_samples",
			Help: "Samples in the indicator window",
		}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polybot_last_price_usd",
			Help: "Most recent underlying price",
		}),
		FeedFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polybot_feed_fetch_total",
			Help: "Price source fetch attempts",
		}, []string{"source", "result"}),
		FeedFetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "polybot_feed_fetch_duration_seconds",
			Help:    "Price source fetch latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		TickDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "polybot_tick_duration_seconds",
			Help:    "Execution loop tick latency",
			Buckets: prometheus.DefBuckets,
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polybot_notify_failures_total",
			Help: "Notifications that failed to deliver",
		}),
		JournalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polybot_journal_failures_total",
			Help: "Journal writes that failed, by sink",
		}, []string{"sink"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.DecisionsTotal,
		m.VotesTotal,
		m.OrdersTotal,
		m.TradesBlocked,
		m.SettledTotal,
		m.HaltsTotal,
		m.RealizedPnL,
		m.RealizedLoss,
		m.Capital,
		m.DrawdownPct,
		m.OpenPositions,
		m.Halted,
		m.Samples,
		m.LastPrice,
		m.FeedFetchTotal,
		m.FeedFetchDur,
		m.TickDur,
		m.NotifyFailures,
		m.JournalFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveSignal counts a decision and its votes.
func (m *Metrics) ObserveSignal(sig domain.Signal) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(string(sig.Decision), string(sig.Confidence)).Inc()
	m.VotesTotal.WithLabelValues("buy").Add(float64(sig.BuyVotes))
	m.VotesTotal.WithLabelValues("sell").Add(float64(sig.SellVotes))
	m.Samples.Set(float64(sig.Indicators.SampleCount))
	if sig.Indicators.CurrentPrice > 0 {
		m.LastPrice.Set(sig.Indicators.CurrentPrice)
	}
}

// ObserveOrder counts an order attempt.
func (m *Metrics) ObserveOrder(mode domain.TradeMode, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.OrdersTotal.WithLabelValues(string(mode), result).Inc()
}

// ObserveBlocked counts an actionable signal that was not traded.
func (m *Metrics) ObserveBlocked(reason string) {
	if m == nil {
		return
	}
	m.TradesBlocked.WithLabelValues(reason).Inc()
}

// ObserveSettlement counts a settled position and its P&L.
func (m *Metrics) ObserveSettlement(p domain.Position) {
	if m == nil {
		return
	}
	m.SettledTotal.WithLabelValues(p.Outcome).Inc()
	if p.RealizedPnL >= 0 {
		m.RealizedPnL.Add(p.RealizedPnL)
	} else {
		m.RealizedLoss.Add(-p.RealizedPnL)
	}
}

// ObserveRisk mirrors the risk status into gauges.
func (m *Metrics) ObserveRisk(st domain.RiskStatus) {
	if m == nil {
		return
	}
	m.Capital.Set(st.Capital)
	m.DrawdownPct.Set(st.DrawdownPct)
	m.OpenPositions.Set(float64(st.OpenPositions))
	if st.Halted {
		m.Halted.Set(1)
	} else {
		m.Halted.Set(0)
	}
}

// ObserveHalt counts a newly observed halt.
func (m *Metrics) ObserveHalt() {
	if m == nil {
		return
	}
	m.HaltsTotal.Inc()
}

// ObserveFetch records one price source call.
func (m *Metrics) ObserveFetch(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.FeedFetchTotal.WithLabelValues(source, result).Inc()
	m.FeedFetchDur.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveTick records the duration of one loop tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.TickDur.Observe(d.Seconds())
}

// ObserveNotifyFailure counts a failed notification.
func (m *Metrics) ObserveNotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

// ObserveJournalFailure counts a failed journal write.
func (m *Metrics) ObserveJournalFailure(sink string) {
	if m == nil {
		return
	}
	m.JournalFailures.WithLabelValues(sink).Inc()
}
