package service

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRisk(t *testing.T) (*RiskManager, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	rm := NewRiskManager(DefaultRiskConfig(), discardLogger()).WithClock(clk.Now)
	return rm, clk
}

func TestRiskManager_InitialState(t *testing.T) {
	rm, _ := newTestRisk(t)

	ok, reason := rm.CanTrade()
	assert.True(t, ok)
	assert.Equal(t, "OK", reason)

	st := rm.Status()
	assert.Equal(t, 100.0, st.Capital)
	assert.Zero(t, st.DrawdownPct)
	assert.False(t, st.Halted)
	assert.Nil(t, st.HaltUntil)
	assert.Equal(t, "2026-03-01", rm.Day())
}

func TestRiskManager_PositionSize(t *testing.T) {
	rm, _ := newTestRisk(t)

	assert.InDelta(t, 7.0, rm.PositionSize(domain.ConfidenceHigh), 1e-9)
	assert.InDelta(t, 3.5, rm.PositionSize(domain.ConfidenceMedium), 1e-9)
	assert.Zero(t, rm.PositionSize(domain.ConfidenceLow))

	// Two losses halve the base fraction.
	rm.RecordTrade(-1)
	rm.RecordTrade(-1)
	assert.InDelta(t, 98*0.035, rm.PositionSize(domain.ConfidenceHigh), 1e-9)
	assert.InDelta(t, 98*0.0175, rm.PositionSize(domain.ConfidenceMedium), 1e-9)
	assert.Zero(t, rm.PositionSize(domain.ConfidenceLow))

	// A win resets the streak.
	rm.RecordTrade(2)
	assert.InDelta(t, 100*0.07, rm.PositionSize(domain.ConfidenceHigh), 1e-9)
}

func TestRiskManager_LowConfidenceAlwaysZero(t *testing.T) {
	for _, capital := range []float64{0, 1, 100, 1e6} {
		cfg := DefaultRiskConfig()
		cfg.InitialCapital = capital
		rm := NewRiskManager(cfg, discardLogger())
		assert.Zero(t, rm.PositionSize(domain.ConfidenceLow))
		rm.RecordTrade(-0.01)
		rm.RecordTrade(-0.01)
		assert.Zero(t, rm.PositionSize(domain.ConfidenceLow))
	}
}

func TestRiskManager_StreaksAreExclusive(t *testing.T) {
	rm, _ := newTestRisk(t)

	rm.RecordTrade(1)
	rm.RecordTrade(1)
	s := rm.State()
	assert.Equal(t, 2, s.ConsecutiveWins)
	assert.Zero(t, s.ConsecutiveLosses)

	rm.RecordTrade(-1)
	s = rm.State()
	assert.Zero(t, s.ConsecutiveWins)
	assert.Equal(t, 1, s.ConsecutiveLosses)

	// Break-even counts as a loss.
	rm.RecordTrade(0)
	s = rm.State()
	assert.Equal(t, 2, s.ConsecutiveLosses)
	assert.Equal(t, 4, s.TradesToday)
	assert.InDelta(t, 101.0, s.CurrentCapital, 1e-9)
}

func TestRiskManager_LossStreakHaltAndCooldown(t *testing.T) {
	rm, clk := newTestRisk(t)

	rm.RecordTrade(-0.5)
	rm.RecordTrade(-0.5)
	ok, _ := rm.CanTrade()
	require.True(t, ok)

	rm.RecordTrade(-0.5)
	ok, reason := rm.CanTrade()
	assert.False(t, ok)
	assert.Equal(t, "Trading halted: Consecutive loss streak (3)", reason)

	st := rm.Status()
	require.NotNil(t, st.HaltUntil)
	assert.Equal(t, clk.t.Add(time.Hour), *st.HaltUntil)

	clk.Advance(59 * time.Minute)
	ok, _ = rm.CanTrade()
	assert.False(t, ok)

	clk.Advance(2 * time.Minute)
	ok, reason = rm.CanTrade()
	assert.True(t, ok)
	assert.Equal(t, "OK", reason)
	assert.False(t, rm.Status().Halted)
}

func TestRiskManager_DrawdownHalt(t *testing.T) {
	rm, clk := newTestRisk(t)
	rm.Restore(domain.RiskState{
		InitialCapital:    100,
		CurrentCapital:    89,
		DailyStartCapital: 100,
		Day:               "2026-03-01",
	})

	ok, reason := rm.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, strings.ToLower(reason), "drawdown")
	assert.Equal(t, "Daily drawdown limit (11.0%)", reason)

	st := rm.Status()
	assert.True(t, st.Halted)
	require.NotNil(t, st.HaltUntil)
	assert.Equal(t, clk.t.Add(4*time.Hour), *st.HaltUntil)
	assert.InDelta(t, 11.0, st.DrawdownPct, 1e-9)

	ok, reason = rm.CanTrade()
	assert.False(t, ok)
	assert.Equal(t, "Trading halted: Daily drawdown limit (11.0%)", reason)
}

func TestRiskManager_DrawdownExactlyAtLimit(t *testing.T) {
	rm, _ := newTestRisk(t)
	rm.Restore(domain.RiskState{CurrentCapital: 90, DailyStartCapital: 100})

	ok, _ := rm.CanTrade()
	assert.False(t, ok)
}

func TestRiskManager_LongerHaltWins(t *testing.T) {
	rm, clk := newTestRisk(t)
	rm.Restore(domain.RiskState{
		CurrentCapital:    91,
		DailyStartCapital: 100,
		ConsecutiveLosses: 2,
	})
	// A settled loss pushes drawdown past the limit and completes the streak.
	rm.RecordTrade(-2)
	assert.Equal(t, "Consecutive loss streak (3)", rm.State().HaltReason)

	// The loss-streak halt is active, so the drawdown check is not reached.
	ok, _ := rm.CanTrade()
	assert.False(t, ok)

	// After the streak cooldown, the drawdown halt takes over for 4h.
	clk.Advance(61 * time.Minute)
	ok, reason := rm.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "drawdown")
	drawdownUntil := *rm.Status().HaltUntil

	// Another loss during the drawdown halt must not shorten it.
	rm.RecordTrade(-1)
	st := rm.State()
	assert.Equal(t, drawdownUntil, st.HaltUntil)
	assert.Contains(t, st.HaltReason, "drawdown")
}

func TestRiskManager_Limits(t *testing.T) {
	t.Run("daily trade limit", func(t *testing.T) {
		rm, _ := newTestRisk(t)
		for i := 0; i < 8; i++ {
			rm.RecordTrade(0.1)
		}
		ok, reason := rm.CanTrade()
		assert.False(t, ok)
		assert.Equal(t, "Daily trade limit reached (8)", reason)
	})

	t.Run("concurrent positions", func(t *testing.T) {
		rm, _ := newTestRisk(t)
		rm.OpenPosition()
		rm.OpenPosition()
		ok, reason := rm.CanTrade()
		assert.False(t, ok)
		assert.Equal(t, "Max positions open (2)", reason)

		rm.ClosePosition()
		ok, _ = rm.CanTrade()
		assert.True(t, ok)

		rm.ClosePosition()
		rm.ClosePosition()
		assert.Zero(t, rm.State().OpenPositions)
	})

	t.Run("daily limit checked before drawdown", func(t *testing.T) {
		rm, _ := newTestRisk(t)
		rm.Restore(domain.RiskState{CurrentCapital: 50, DailyStartCapital: 100, TradesToday: 8})
		ok, reason := rm.CanTrade()
		assert.False(t, ok)
		assert.Contains(t, reason, "Daily trade limit")
		assert.False(t, rm.Status().Halted)
	})
}

func TestRiskManager_ResetDaily(t *testing.T) {
	rm, clk := newTestRisk(t)
	rm.RecordTrade(-5)
	rm.RecordTrade(-3)

	clk.Advance(24 * time.Hour)
	rm.ResetDaily()

	s := rm.State()
	assert.Zero(t, s.TradesToday)
	assert.InDelta(t, 92.0, s.DailyStartCapital, 1e-9)
	assert.Equal(t, 2, s.ConsecutiveLosses, "streaks carry across days")
	assert.Equal(t, "2026-03-02", s.Day)
	assert.Zero(t, rm.Status().DailyPnL)
}

func TestRiskManager_SetCapital(t *testing.T) {
	rm, _ := newTestRisk(t)
	rm.SetCapital(250)
	s := rm.State()
	assert.Equal(t, 250.0, s.CurrentCapital)
	assert.Equal(t, 250.0, s.DailyStartCapital)

	rm.RecordTrade(-10)
	rm.SetCapital(245)
	s = rm.State()
	assert.Equal(t, 245.0, s.CurrentCapital)
	assert.Equal(t, 250.0, s.DailyStartCapital)
}

func TestRiskManager_SyncOpenPositions(t *testing.T) {
	rm, _ := newTestRisk(t)
	rm.Restore(domain.RiskState{
		InitialCapital:    100,
		CurrentCapital:    100,
		DailyStartCapital: 100,
		OpenPositions:     2,
		Day:               "2026-03-01",
	})
	ok, reason := rm.CanTrade()
	require.False(t, ok)
	assert.Equal(t, "Max positions open (2)", reason)

	rm.SyncOpenPositions(0)
	ok, _ = rm.CanTrade()
	assert.True(t, ok)
	assert.Equal(t, 0, rm.State().OpenPositions)

	rm.OpenPosition()
	rm.SyncOpenPositions(1)
	assert.Equal(t, 1, rm.State().OpenPositions)
}
