package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// RiskConfig holds the hard capital-protection limits.
type RiskConfig struct {
	InitialCapital         float64
	MaxPositionPct         float64
	MaxConcurrentPositions int
	MaxDailyDrawdownPct    float64
	DrawdownCooldown       time.Duration
	ConsecutiveLossHalt    int
	LossStreakCooldown     time.Duration
	DailyTradeLimit        int
	MinOrderUSD            float64
	// Location is used to stamp the trading day. Nil means UTC.
	Location *time.Location
}

// DefaultRiskConfig returns the limits for a $100 account.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		InitialCapital:         100,
		MaxPositionPct:         0.07,
		MaxConcurrentPositions: 2,
		MaxDailyDrawdownPct:    0.10,
		DrawdownCooldown:       4 * time.Hour,
		ConsecutiveLossHalt:    3,
		LossStreakCooldown:     time.Hour,
		DailyTradeLimit:        8,
		MinOrderUSD:            1,
	}
}

// RiskManager gates new trades and sizes them. It performs no I/O and none of
// its operations can fail. All mutation happens from the execution loop; the
// mutex only protects concurrent readers such as the status API.
type RiskManager struct {
	mu     sync.Mutex
	cfg    RiskConfig
	state  domain.RiskState
	now    func() time.Time
	logger *slog.Logger
}

// NewRiskManager creates a RiskManager seeded with cfg.InitialCapital.
func NewRiskManager(cfg RiskConfig, logger *slog.Logger) *RiskManager {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	r := &RiskManager{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "risk_manager")),
	}
	r.state = domain.RiskState{
		InitialCapital:    cfg.InitialCapital,
		CurrentCapital:    cfg.InitialCapital,
		DailyStartCapital: cfg.InitialCapital,
		Day:               r.day(),
		UpdatedAt:         r.now().UTC(),
	}
	return r
}

// WithClock replaces the time source. It is meant for tests and must be
// called before the manager is shared.
func (r *RiskManager) WithClock(now func() time.Time) *RiskManager {
	r.now = now
	r.state.Day = r.day()
	return r
}

// Config returns the configured limits.
func (r *RiskManager) Config() RiskConfig { return r.cfg }

// CanTrade reports whether a new position may be opened. The reason is "OK"
// when allowed.
//
// Checks run in order: an active halt, the daily trade limit, concurrent
// positions, and daily drawdown. A drawdown breach halts trading for
// DrawdownCooldown.
func (r *RiskManager) CanTrade() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := &r.state

	if s.Halted {
		if !s.HaltUntil.IsZero() && now.After(s.HaltUntil) {
			r.logger.Info("risk_manager: halt expired",
				slog.String("reason", s.HaltReason),
				slog.Time("halt_until", s.HaltUntil),
			)
			s.Halted = false
			s.HaltReason = ""
			s.HaltUntil = time.Time{}
			s.UpdatedAt = now.UTC()
		} else {
			return false, "Trading halted: " + s.HaltReason
		}
	}

	if s.TradesToday >= r.cfg.DailyTradeLimit {
		return false, fmt.Sprintf("Daily trade limit reached (%d)", s.TradesToday)
	}

	if s.OpenPositions >= r.cfg.MaxConcurrentPositions {
		return false, fmt.Sprintf("Max positions open (%d)", s.OpenPositions)
	}

	if s.DailyStartCapital <= 0 {
		return false, "No capital available"
	}
	drawdown := (s.DailyStartCapital - s.CurrentCapital) / s.DailyStartCapital
	if drawdown >= r.cfg.MaxDailyDrawdownPct {
		r.halt(fmt.Sprintf("Daily drawdown limit (%.1f%%)", drawdown*100), r.cfg.DrawdownCooldown, now)
		return false, r.state.HaltReason
	}

	return true, "OK"
}

// PositionSize returns the USD amount allowed for a trade of the given
// confidence. The base fraction is MaxPositionPct, halved after two or more
// consecutive losses; MEDIUM takes half of that and LOW always gets zero.
func (r *RiskManager) PositionSize(conf domain.Confidence) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := r.cfg.MaxPositionPct
	if r.state.ConsecutiveLosses >= 2 {
		base *= 0.5
	}

	var pct float64
	switch conf {
	case domain.ConfidenceHigh:
		pct = base
	case domain.ConfidenceMedium:
		pct = base * 0.5
	default:
		return 0
	}
	if r.state.CurrentCapital <= 0 {
		return 0
	}
	return r.state.CurrentCapital * pct
}

// MinOrderUSD is the smallest order the loop should submit.
func (r *RiskManager) MinOrderUSD() float64 { return r.cfg.MinOrderUSD }

// RecordTrade applies one trade's realized P&L. A non-positive pnl counts as
// a loss. Reaching ConsecutiveLossHalt losses halts trading for
// LossStreakCooldown.
func (r *RiskManager) RecordTrade(pnl float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s := &r.state
	s.TradesToday++
	s.CurrentCapital += pnl

	if pnl > 0 {
		s.ConsecutiveWins++
		s.ConsecutiveLosses = 0
	} else {
		s.ConsecutiveLosses++
		s.ConsecutiveWins = 0
	}
	s.UpdatedAt = now.UTC()

	r.logger.Info("risk_manager: trade recorded",
		slog.Float64("pnl", pnl),
		slog.Float64("capital", s.CurrentCapital),
		slog.Int("trades_today", s.TradesToday),
		slog.Int("consecutive_losses", s.ConsecutiveLosses),
		slog.Int("consecutive_wins", s.ConsecutiveWins),
	)

	if r.cfg.ConsecutiveLossHalt > 0 && s.ConsecutiveLosses >= r.cfg.ConsecutiveLossHalt {
		r.halt(fmt.Sprintf("Consecutive loss streak (%d)", s.ConsecutiveLosses), r.cfg.LossStreakCooldown, now)
	}
}

// OpenPosition counts a newly opened position against the concurrency limit.
func (r *RiskManager) OpenPosition() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.OpenPositions++
	r.state.UpdatedAt = r.now().UTC()
}

// ClosePosition releases one slot of the concurrency limit.
func (r *RiskManager) ClosePosition() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.OpenPositions > 0 {
		r.state.OpenPositions--
	}
	r.state.UpdatedAt = r.now().UTC()
}

// ResetDaily starts a new trading day: the current capital becomes the
// drawdown baseline and the trade counter is zeroed. Halts are untouched.
func (r *RiskManager) ResetDaily() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.DailyStartCapital = r.state.CurrentCapital
	r.state.TradesToday = 0
	r.state.Day = r.day()
	r.state.UpdatedAt = r.now().UTC()

	r.logger.Info("risk_manager: daily reset",
		slog.String("day", r.state.Day),
		slog.Float64("daily_start_capital", r.state.DailyStartCapital),
	)
}

// SetCapital re-seeds the current capital from an external balance source.
// The drawdown baseline follows only while no trade has been recorded today.
func (r *RiskManager) SetCapital(capital float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.CurrentCapital = capital
	if r.state.TradesToday == 0 {
		r.state.DailyStartCapital = capital
	}
	r.state.UpdatedAt = r.now().UTC()
}

// Day returns the trading day of the last reset as YYYY-MM-DD.
func (r *RiskManager) Day() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Day
}

// State returns a copy of the full risk state.
func (r *RiskManager) State() domain.RiskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Restore replaces the state with a previously saved snapshot.
func (r *RiskManager) Restore(s domain.RiskState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.logger.Info("risk_manager: state restored",
		slog.String("day", s.Day),
		slog.Float64("capital", s.CurrentCapital),
		slog.Int("trades_today", s.TradesToday),
		slog.Bool("halted", s.Halted),
	)
}

// SyncOpenPositions sets the open-position count to the number of positions
// actually held, so a restored counter can never hold slots nobody will
// release.
func (r *RiskManager) SyncOpenPositions(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.OpenPositions == n {
		return
	}
	r.logger.Warn("risk_manager: open position count corrected",
		slog.Int("was", r.state.OpenPositions),
		slog.Int("now", n),
	)
	r.state.OpenPositions = max(n, 0)
	r.state.UpdatedAt = r.now().UTC()
}

// Status returns the reporting view of the risk state. A halt whose
// cooldown has elapsed is reported as cleared even before CanTrade clears it.
func (r *RiskManager) Status() domain.RiskStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.state
	if s.Halted && !s.HaltUntil.IsZero() && r.now().After(s.HaltUntil) {
		s.Halted = false
		s.HaltReason = ""
	}
	st := domain.RiskStatus{
		Capital:           s.CurrentCapital,
		InitialCapital:    s.InitialCapital,
		DailyPnL:          s.CurrentCapital - s.DailyStartCapital,
		TradesToday:       s.TradesToday,
		ConsecutiveLosses: s.ConsecutiveLosses,
		ConsecutiveWins:   s.ConsecutiveWins,
		OpenPositions:     s.OpenPositions,
		Halted:            s.Halted,
		HaltReason:        s.HaltReason,
	}
	if s.DailyStartCapital > 0 {
		st.DailyPnLPct = st.DailyPnL / s.DailyStartCapital * 100
		st.DrawdownPct = (s.DailyStartCapital - s.CurrentCapital) / s.DailyStartCapital * 100
	}
	if s.Halted && !s.HaltUntil.IsZero() {
		until := s.HaltUntil
		st.HaltUntil = &until
	}
	return st
}

// halt suspends trading for d. When a halt is already active and ends later
// than the new one would, the existing halt and its reason are kept.
// The caller must hold r.mu.
func (r *RiskManager) halt(reason string, d time.Duration, now time.Time) {
	until := now.Add(d)
	s := &r.state
	if s.Halted && s.HaltUntil.After(until) {
		r.logger.Info("risk_manager: halt trigger superseded by longer halt",
			slog.String("reason", reason),
			slog.String("active_reason", s.HaltReason),
			slog.Time("active_until", s.HaltUntil),
		)
		return
	}
	s.Halted = true
	s.HaltReason = reason
	s.HaltUntil = until
	s.UpdatedAt = now.UTC()

	r.logger.Warn("risk_manager: trading halted",
		slog.String("reason", reason),
		slog.Time("halt_until", until),
	)
}

func (r *RiskManager) day() string {
	return r.now().In(r.cfg.Location).Format(time.DateOnly)
}
