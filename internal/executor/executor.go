// Package executor runs the trading loop: one decision per market interval,
// gated by the entry window and the risk manager, with settlement of open
// positions and status reporting on every tick.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
	"github.com/optimizeforall/polymarket-bot/internal/metrics"
	"github.com/optimizeforall/polymarket-bot/internal/notify"
	"github.com/optimizeforall/polymarket-bot/internal/service"
	"github.com/optimizeforall/polymarket-bot/internal/strategy"
)

// PriceSupplier provides indicator snapshots and settlement prices.
type PriceSupplier interface {
	Indicators(ctx context.Context, window time.Duration) (domain.IndicatorSnapshot, error)
	SettlementPrice(at time.Time) (float64, bool)
}

// MarketFinder resolves the market traded in the current interval.
type MarketFinder interface {
	Current(ctx context.Context, now time.Time) (*domain.Market, error)
}

// Notifier delivers advisory messages without blocking the loop.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string)
	Wait(ctx context.Context)
}

// Publisher pushes loop events to live subscribers.
type Publisher interface {
	Broadcast(event string, payload any)
}

// Creditor is implemented by order sinks that keep a local balance. Settled
// payouts are credited back to it.
type Creditor interface {
	Credit(amount float64) float64
}

// Config holds the loop timing and order parameters.
type Config struct {
	Mode            string
	Brain           string
	IntervalMinutes int
	PollInterval    time.Duration
	SummaryInterval time.Duration
	RunFor          time.Duration // zero runs until ctx is cancelled
	Lookback        time.Duration
	OrderTimeout    time.Duration
	FetchTimeout    time.Duration
	HintTimeout     time.Duration
	EntryPrice      float64
	Wallet          string
	LockKey         string
	LockTTL         time.Duration
	RiskStateKey    string
}

// DefaultConfig returns the loop defaults for a 15-minute market.
func DefaultConfig() Config {
	return Config{
		Mode:            "paper",
		Brain:           "rules",
		IntervalMinutes: 15,
		PollInterval:    60 * time.Second,
		SummaryInterval: time.Hour,
		Lookback:        15 * time.Minute,
		OrderTimeout:    30 * time.Second,
		FetchTimeout:    10 * time.Second,
		HintTimeout:     60 * time.Second,
		EntryPrice:      0.50,
		LockTTL:         3 * time.Minute,
	}
}

// Deps are the collaborators of the loop. Prices, Engine, Risk and Positions
// are required; everything else may be nil. A nil Sink runs the loop in
// signal-only mode.
type Deps struct {
	Prices    PriceSupplier
	Markets   MarketFinder
	Engine    *strategy.SignalEngine
	Window    strategy.EntryWindow
	Risk      *service.RiskManager
	Positions *service.PositionService
	Sink      domain.OrderSink
	Balance   domain.BalanceSource
	Hints     domain.HintOracle
	Journal   domain.Journal
	Notifier  Notifier
	Events    Publisher
	Audit     domain.AuditStore
	RiskCache domain.RiskStateCache
	Locks     domain.LockManager
	Metrics   *metrics.Metrics
}

// Loop is the execution state machine. Tick is driven from a single
// goroutine; the mutex only guards the fields read by Status and Summary.
type Loop struct {
	cfg    Config
	d      Deps
	now    func() time.Time
	halts  *Dedup
	logger *slog.Logger

	mu                 sync.Mutex
	sessionID          string
	startedAt          time.Time
	startCapital       float64
	lastTick           time.Time
	lastSignalInterval time.Time
	lastSummary        time.Time
	lastSignal         *domain.Signal
	signals            int
	trades             int
	wins               int
	losses             int
}

// NewLoop creates a Loop.
func NewLoop(cfg Config, d Deps, logger *slog.Logger) *Loop {
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Journal == nil {
		d.Journal = nopJournal{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	return &Loop{
		cfg:       cfg,
		d:         d,
		now:       time.Now,
		halts:     NewDedup(24 * time.Hour),
		sessionID: uuid.NewString(),
		logger:    logger.With(slog.String("component", "executor")),
	}
}

// WithClock replaces the time source used by Run.
func (l *Loop) WithClock(now func() time.Time) *Loop {
	l.now = now
	return l
}

// Run ticks immediately and then every PollInterval until ctx is cancelled
// or RunFor elapses. On exit it reconciles the balance and sends the session
// summary.
func (l *Loop) Run(ctx context.Context) error {
	start := l.now()
	st := l.d.Risk.Status()

	l.mu.Lock()
	l.startedAt = start
	l.startCapital = st.Capital
	l.lastSummary = start
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "execution loop started",
		slog.String("session_id", l.sessionID),
		slog.String("mode", l.cfg.Mode),
		slog.Int("interval_minutes", l.cfg.IntervalMinutes),
		slog.Duration("poll_interval", l.cfg.PollInterval),
		slog.Duration("run_for", l.cfg.RunFor),
		slog.Float64("capital", st.Capital),
	)
	title, body := notify.FormatStartup(l.cfg.Mode, l.cfg.Brain, l.cfg.IntervalMinutes, st.Capital, l.cfg.RunFor, start)
	l.d.Notifier.Notify(ctx, notify.EventStartup, title, body)

	var deadline <-chan time.Time
	if l.cfg.RunFor > 0 {
		timer := time.NewTimer(l.cfg.RunFor)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	l.Tick(ctx, l.now())
	for {
		select {
		case <-ctx.Done():
			l.shutdown(ctx)
			return ctx.Err()
		case <-deadline:
			l.logger.InfoContext(ctx, "run duration elapsed")
			l.shutdown(ctx)
			return nil
		case <-ticker.C:
			l.Tick(ctx, l.now())
		}
	}
}

// Tick performs one poll: settle due positions, take the per-interval
// decision if it is due, then report. It never panics out.
func (l *Loop) Tick(ctx context.Context, now time.Time) {
	began := time.Now()
	defer func() {
		if r := recover(); r != nil {
			l.logger.ErrorContext(ctx, "tick panicked", slog.Any("panic", r))
		}
		l.d.Metrics.ObserveTick(time.Since(began))
	}()

	l.mu.Lock()
	l.lastTick = now
	if l.lastSummary.IsZero() {
		l.lastSummary = now
	}
	l.mu.Unlock()

	l.extendLock(ctx)
	l.rollover(ctx, now)
	l.settle(ctx, now)
	l.d.Risk.SyncOpenPositions(len(l.d.Positions.OpenPositions()))
	l.decide(ctx, now)
	l.summarize(ctx, now)
	l.surfaceHalt(ctx, now)
	l.saveRisk(ctx)
	l.d.Metrics.ObserveRisk(l.d.Risk.Status())
}

// decide runs the single decision point of the current interval. The
// interval is marked as evaluated only after any order attempt resolves.
func (l *Loop) decide(ctx context.Context, now time.Time) {
	interval := strategy.IntervalStart(now, l.cfg.IntervalMinutes)

	l.mu.Lock()
	evaluated := interval.Equal(l.lastSignalInterval)
	l.mu.Unlock()
	if evaluated {
		return
	}

	window := l.d.Window.Check(now)
	if !window.Open {
		l.logger.DebugContext(ctx, "waiting for entry window", slog.String("window", window.Message))
		return
	}
	defer func() {
		l.mu.Lock()
		l.lastSignalInterval = interval
		l.mu.Unlock()
	}()

	snap := l.indicators(ctx, now)
	market := l.market(ctx, now)
	hint := l.hint(ctx, snap, market)

	sig := l.d.Engine.Generate(snap, hint, window)
	sig.ID = uuid.NewString()
	if sig.Time.IsZero() {
		sig.Time = now
	}
	l.recordSignal(ctx, interval, sig)

	if sig.Decision == domain.DecisionHold || l.d.Sink == nil {
		return
	}
	l.execute(ctx, now, interval, sig, market)
}

func (l *Loop) indicators(ctx context.Context, now time.Time) domain.IndicatorSnapshot {
	fctx, cancel := l.timeout(ctx, l.cfg.FetchTimeout)
	defer cancel()
	snap, err := l.d.Prices.Indicators(fctx, l.cfg.Lookback)
	if err != nil && !errors.Is(err, domain.ErrInsufficientData) {
		l.logger.WarnContext(ctx, "indicators unavailable, holding",
			slog.String("error", err.Error()),
		)
		return domain.IndicatorSnapshot{Time: now}
	}
	if snap.Time.IsZero() {
		snap.Time = now
	}
	return snap
}

func (l *Loop) market(ctx context.Context, now time.Time) *domain.Market {
	if l.d.Markets == nil {
		return nil
	}
	fctx, cancel := l.timeout(ctx, l.cfg.FetchTimeout)
	defer cancel()
	m, err := l.d.Markets.Current(fctx, now)
	if err != nil {
		l.logger.WarnContext(ctx, "market lookup failed", slog.String("error", err.Error()))
		return nil
	}
	return m
}

func (l *Loop) hint(ctx context.Context, snap domain.IndicatorSnapshot, market *domain.Market) *domain.DirectionalHint {
	if l.d.Hints == nil || snap.CurrentPrice <= 0 {
		return nil
	}
	// The engine holds on thin data regardless of the vote.
	if snap.SampleCount < l.d.Engine.MinSamples() {
		l.logger.DebugContext(ctx, "skipping directional hint on thin data",
			slog.Int("samples", snap.SampleCount),
			slog.Int("min_samples", l.d.Engine.MinSamples()),
		)
		return nil
	}
	hctx, cancel := l.timeout(ctx, l.cfg.HintTimeout)
	defer cancel()
	h, err := l.d.Hints.Hint(hctx, snap, market)
	if err != nil {
		l.logger.WarnContext(ctx, "directional hint failed, continuing without it",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return h
}

func (l *Loop) recordSignal(ctx context.Context, interval time.Time, sig domain.Signal) {
	l.mu.Lock()
	l.signals++
	s := sig
	l.lastSignal = &s
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "decision point",
		slog.String("signal_id", sig.ID),
		slog.Time("interval", interval),
		slog.String("decision", string(sig.Decision)),
		slog.String("confidence", string(sig.Confidence)),
		slog.Float64("position_size", sig.PositionSize),
		slog.Int("buy_votes", sig.BuyVotes),
		slog.Int("sell_votes", sig.SellVotes),
		slog.Bool("entry_window_open", sig.EntryWindowOpen),
	)
	l.d.Metrics.ObserveSignal(sig)
	if err := l.d.Journal.RecordSignal(ctx, sig); err != nil {
		l.logger.WarnContext(ctx, "journal signal failed", slog.String("error", err.Error()))
	}
	l.broadcast("signal", sig)

	title, body := notify.FormatSignal(sig)
	l.d.Notifier.Notify(ctx, notify.EventSignal, title, body)
}

// execute gates, sizes and places the order for an actionable signal.
func (l *Loop) execute(ctx context.Context, now, interval time.Time, sig domain.Signal, market *domain.Market) {
	dir, _ := sig.Decision.Direction()
	log := l.logger.With(slog.String("signal_id", sig.ID))

	if ok, reason := l.d.Risk.CanTrade(); !ok {
		log.InfoContext(ctx, "trade blocked by risk manager", slog.String("reason", reason))
		l.d.Metrics.ObserveBlocked("risk")
		return
	}
	if sig.Confidence == domain.ConfidenceLow {
		log.InfoContext(ctx, "trade skipped: low confidence")
		l.d.Metrics.ObserveBlocked("low_confidence")
		return
	}
	size := l.d.Risk.PositionSize(sig.Confidence)
	if size < l.d.Risk.MinOrderUSD() {
		log.InfoContext(ctx, "trade skipped: below minimum order",
			slog.Float64("size_usd", size),
			slog.Float64("min_order_usd", l.d.Risk.MinOrderUSD()),
		)
		l.d.Metrics.ObserveBlocked("min_order")
		return
	}

	mode := l.d.Sink.Mode()
	var marketID, tokenID string
	if market != nil {
		marketID = market.ID
		tokenID = market.TokenFor(dir)
		log.DebugContext(ctx, "outcome quote",
			slog.String("direction", string(dir)),
			slog.Float64("quoted", market.PriceFor(dir)),
			slog.Float64("limit", l.cfg.EntryPrice),
		)
	}
	if tokenID == "" {
		if mode == domain.TradeModeLive {
			log.WarnContext(ctx, "trade skipped: no tradeable market")
			l.d.Metrics.ObserveBlocked("no_market")
			return
		}
		tokenID = "paper-" + string(dir)
	}

	order := domain.Order{
		ID:         uuid.NewString(),
		MarketID:   marketID,
		TokenID:    tokenID,
		Wallet:     l.cfg.Wallet,
		Direction:  dir,
		Side:       domain.OrderSideBuy,
		Type:       domain.OrderTypeGTC,
		AmountUSD:  size,
		LimitPrice: l.cfg.EntryPrice,
		Mode:       mode,
		CreatedAt:  now,
	}

	octx, cancel := l.timeout(ctx, l.cfg.OrderTimeout)
	res, err := l.d.Sink.PlaceOrder(octx, order)
	cancel()

	ok := err == nil && res.Success
	l.d.Metrics.ObserveOrder(mode, ok)
	if !ok {
		msg := res.Message
		if err != nil {
			msg = err.Error()
		}
		log.WarnContext(ctx, "order failed",
			slog.String("direction", string(dir)),
			slog.Float64("size_usd", size),
			slog.String("error", msg),
		)
		l.audit(ctx, "order_failed", map[string]any{
			"signal_id": sig.ID, "direction": string(dir), "size_usd": size, "error": msg,
		})
		return
	}

	entry := order.LimitPrice
	if res.FilledPrice > 0 {
		entry = res.FilledPrice
	}
	amount := size
	if res.FilledAmount > 0 {
		amount = res.FilledAmount
	}

	l.d.Risk.OpenPosition()
	l.d.Positions.Open(ctx, domain.Position{
		ID:             uuid.NewString(),
		MarketID:       marketID,
		TokenID:        tokenID,
		OrderID:        res.OrderID,
		Direction:      dir,
		Confidence:     sig.Confidence,
		SizeUSD:        amount,
		EntryPrice:     entry,
		ReferencePrice: sig.Indicators.CurrentPrice,
		IntervalStart:  interval,
		IntervalEnd:    interval.Add(time.Duration(l.cfg.IntervalMinutes) * time.Minute),
		OpenedAt:       now,
	})

	l.mu.Lock()
	l.trades++
	l.mu.Unlock()

	log.InfoContext(ctx, "order placed",
		slog.String("order_id", res.OrderID),
		slog.String("mode", string(mode)),
		slog.String("direction", string(dir)),
		slog.Float64("size_usd", amount),
		slog.Float64("entry_price", entry),
	)

	rec := domain.TradeRecord{
		Time:         now,
		Interval:     interval,
		Decision:     sig.Decision,
		Confidence:   sig.Confidence,
		Direction:    dir,
		SizeUSD:      amount,
		EntryPrice:   entry,
		TokenID:      tokenID,
		OrderID:      res.OrderID,
		Paper:        mode == domain.TradeModePaper,
		BalanceAfter: res.BalanceAfter,
		Outcome:      "OPEN",
		Reasons:      sig.Reasons,
	}
	l.recordTrade(ctx, rec)

	st := l.d.Risk.Status()
	title, body := notify.FormatTrade(sig, order, res, market, st, l.d.Risk.Config().DailyTradeLimit, now)
	l.d.Notifier.Notify(ctx, notify.EventTrade, title, body)
}

// settle resolves positions whose interval has ended and feeds the realized
// P&L into the risk manager.
func (l *Loop) settle(ctx context.Context, now time.Time) {
	if !l.d.Positions.HasDue(now) {
		return
	}
	for _, p := range l.d.Positions.SettleDue(ctx, now, l.d.Prices.SettlementPrice) {
		l.d.Risk.RecordTrade(p.RealizedPnL)
		l.d.Risk.ClosePosition()

		st := l.d.Risk.Status()
		balance := st.Capital
		if c, ok := l.d.Sink.(Creditor); ok {
			balance = c.Credit(service.Payout(p))
		}

		l.mu.Lock()
		if p.Outcome == domain.OutcomeWin {
			l.wins++
		} else {
			l.losses++
		}
		l.mu.Unlock()

		l.d.Metrics.ObserveSettlement(p)
		pnl := p.RealizedPnL
		closed := now
		if p.ClosedAt != nil {
			closed = *p.ClosedAt
		}
		l.recordTrade(ctx, domain.TradeRecord{
			Time:         closed,
			Interval:     p.IntervalStart,
			Decision:     decisionFor(p.Direction),
			Confidence:   p.Confidence,
			Direction:    p.Direction,
			SizeUSD:      p.SizeUSD,
			EntryPrice:   p.EntryPrice,
			TokenID:      p.TokenID,
			OrderID:      p.OrderID,
			Paper:        l.d.Sink != nil && l.d.Sink.Mode() == domain.TradeModePaper,
			BalanceAfter: balance,
			PnL:          &pnl,
			Outcome:      p.Outcome,
		})

		title, body := notify.FormatSettlement(p, st)
		l.d.Notifier.Notify(ctx, notify.EventSettled, title, body)
	}
}

func (l *Loop) recordTrade(ctx context.Context, rec domain.TradeRecord) {
	if err := l.d.Journal.RecordTrade(ctx, rec); err != nil {
		l.logger.WarnContext(ctx, "journal trade failed", slog.String("error", err.Error()))
	}
	l.broadcast("trade", rec)
}

// rollover starts a new risk day when the calendar day changes.
func (l *Loop) rollover(ctx context.Context, now time.Time) {
	today := now.In(l.d.Risk.Config().Location).Format(time.DateOnly)
	prev := l.d.Risk.Day()
	if today == prev {
		return
	}
	l.d.Risk.ResetDaily()
	l.audit(ctx, "daily_reset", map[string]any{
		"previous_day": prev,
		"day":          today,
		"capital":      l.d.Risk.Status().Capital,
	})
}

func (l *Loop) summarize(ctx context.Context, now time.Time) {
	if l.cfg.SummaryInterval <= 0 {
		return
	}
	l.mu.Lock()
	due := now.Sub(l.lastSummary) >= l.cfg.SummaryInterval
	if due {
		l.lastSummary = now
	}
	l.mu.Unlock()
	if !due {
		return
	}
	st := l.d.Risk.Status()
	title, body := notify.FormatSummary(st, now)
	l.d.Notifier.Notify(ctx, notify.EventSummary, title, body)
	l.broadcast("status", st)
}

// surfaceHalt reports each distinct halt once.
func (l *Loop) surfaceHalt(ctx context.Context, now time.Time) {
	st := l.d.Risk.Status()
	if !st.Halted {
		return
	}
	key := st.HaltReason
	if st.HaltUntil != nil {
		key += "|" + st.HaltUntil.UTC().Format(time.RFC3339)
	}
	if l.halts.Seen(key, now) {
		return
	}
	l.halts.Cleanup(now)

	l.d.Metrics.ObserveHalt()
	detail := map[string]any{"reason": st.HaltReason, "capital": st.Capital}
	if st.HaltUntil != nil {
		detail["halt_until"] = st.HaltUntil.UTC().Format(time.RFC3339)
	}
	l.audit(ctx, "risk_halt", detail)

	title, body := notify.FormatHalt(st)
	l.d.Notifier.Notify(ctx, notify.EventHalt, title, body)
	l.broadcast("halt", st)
}

func (l *Loop) extendLock(ctx context.Context) {
	if l.d.Locks == nil || l.cfg.LockKey == "" {
		return
	}
	if err := l.d.Locks.Extend(ctx, l.cfg.LockKey, l.cfg.LockTTL); err != nil {
		l.logger.WarnContext(ctx, "lock refresh failed",
			slog.String("key", l.cfg.LockKey),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Loop) saveRisk(ctx context.Context) {
	if l.d.RiskCache == nil || l.cfg.RiskStateKey == "" {
		return
	}
	sctx, cancel := l.timeout(ctx, l.cfg.FetchTimeout)
	defer cancel()
	snap := domain.SessionSnapshot{Risk: l.d.Risk.State(), Positions: l.d.Positions.OpenPositions()}
	if err := l.d.RiskCache.Save(sctx, l.cfg.RiskStateKey, snap); err != nil {
		l.logger.WarnContext(ctx, "risk state save failed", slog.String("error", err.Error()))
	}
}

func (l *Loop) audit(ctx context.Context, event string, detail map[string]any) {
	if l.d.Audit == nil {
		return
	}
	if err := l.d.Audit.Log(ctx, event, detail); err != nil {
		l.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Loop) broadcast(event string, payload any) {
	if l.d.Events != nil {
		l.d.Events.Broadcast(event, payload)
	}
}

// shutdown reconciles the balance and sends the session summary. It runs on
// a context detached from cancellation.
func (l *Loop) shutdown(ctx context.Context) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if l.d.Balance != nil {
		if bal, err := l.d.Balance.Balance(sctx); err != nil {
			l.logger.WarnContext(sctx, "final balance unavailable", slog.String("error", err.Error()))
		} else {
			tracked := l.d.Risk.Status().Capital
			l.logger.InfoContext(sctx, "final reconciliation",
				slog.Float64("balance", bal),
				slog.Float64("tracked_capital", tracked),
				slog.Float64("difference", bal-tracked),
				slog.Int("open_positions", len(l.d.Positions.OpenPositions())),
			)
		}
	}
	l.saveRisk(sctx)

	s := l.Summary()
	l.logger.InfoContext(sctx, "execution loop stopped",
		slog.String("session_id", l.sessionID),
		slog.Int("signals", s.SignalsGenerated),
		slog.Int("trades", s.TradesExecuted),
		slog.Int("wins", s.Wins),
		slog.Int("losses", s.Losses),
		slog.String("pnl", fmt.Sprintf("%.2f", s.PnL())),
	)
	title, body := notify.FormatSession(s)
	l.d.Notifier.Notify(sctx, notify.EventSession, title, body)
	l.d.Notifier.Wait(sctx)
}

// Summary returns the session statistics so far.
func (l *Loop) Summary() notify.SessionStats {
	capital := l.d.Risk.Status().Capital
	l.mu.Lock()
	defer l.mu.Unlock()
	return notify.SessionStats{
		Mode:             l.cfg.Mode,
		StartedAt:        l.startedAt,
		EndedAt:          l.now(),
		SignalsGenerated: l.signals,
		TradesExecuted:   l.trades,
		Wins:             l.wins,
		Losses:           l.losses,
		StartCapital:     l.startCapital,
		FinalCapital:     capital,
	}
}

// Status returns the operational state of the loop.
func (l *Loop) Status() domain.BotStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := domain.BotStatus{
		Mode:             l.cfg.Mode,
		SessionID:        l.sessionID,
		StartedAt:        l.startedAt,
		LastTick:         l.lastTick,
		LastInterval:     l.lastSignalInterval,
		SignalsGenerated: l.signals,
		TradesExecuted:   l.trades,
	}
	if !l.startedAt.IsZero() {
		st.UptimeSeconds = int64(l.now().Sub(l.startedAt).Seconds())
	}
	if l.lastSignal != nil {
		s := *l.lastSignal
		st.LastSignal = &s
	}
	return st
}

func (l *Loop) timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func decisionFor(d domain.Direction) domain.Decision {
	if d == domain.DirectionDown {
		return domain.DecisionSell
	}
	return domain.DecisionBuy
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, string) {}
func (nopNotifier) Wait(context.Context)                           {}

type nopJournal struct{}

func (nopJournal) RecordSignal(context.Context, domain.Signal) error     { return nil }
func (nopJournal) RecordTrade(context.Context, domain.TradeRecord) error { return nil }
