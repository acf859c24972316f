package strategy

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

func testEngine() *SignalEngine {
	cfg := DefaultEngineConfig()
	cfg.MaxPositionPct = 0.20
	return NewSignalEngine(cfg, discardLogger())
}

func snapshot(vwapDev, rsi, momentum float64) domain.IndicatorSnapshot {
	return domain.IndicatorSnapshot{
		Time:             time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
		CurrentPrice:     100_000,
		RSI:              domain.Float(rsi),
		VWAPDeviationPct: domain.Float(vwapDev),
		MomentumPct:      domain.Float(momentum),
		SampleCount:      180,
	}
}

func hasReason(reasons []string, substr string) bool {
	for _, r := range reasons {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

func TestGenerate_AllBullishInOpenWindow(t *testing.T) {
	e := testEngine()
	sig := e.Generate(snapshot(0.3, 62, 0.02), nil, OpenWindow())

	assert.Equal(t, domain.DecisionBuy, sig.Decision)
	assert.Equal(t, domain.ConfidenceHigh, sig.Confidence)
	assert.InDelta(t, 0.10, sig.PositionSize, 1e-12)
	assert.Equal(t, 3, sig.BuyVotes)
	assert.Equal(t, 0, sig.SellVotes)
	assert.True(t, sig.EntryWindowOpen)
	assert.Equal(t, []string{
		"Price above VWAP (+0.30%)",
		"RSI bullish (62.0)",
		"Momentum positive (+0.020%)",
	}, sig.Reasons)
}

func TestGenerate_ClosedWindowForcesHold(t *testing.T) {
	e := testEngine()
	window := WindowState{Open: false, Minute: 12, Message: "Too late (minute 12/15, cutoff was minute 10)"}
	sig := e.Generate(snapshot(0.3, 62, 0.02), nil, window)

	assert.Equal(t, domain.DecisionHold, sig.Decision)
	assert.Zero(t, sig.PositionSize)
	assert.False(t, sig.EntryWindowOpen)
	assert.Equal(t, 3, sig.BuyVotes)
	assert.True(t, hasReason(sig.Reasons, "Price above VWAP"))
	assert.True(t, hasReason(sig.Reasons, "RSI bullish"))
	assert.True(t, hasReason(sig.Reasons, "Momentum positive"))
	assert.True(t, hasReason(sig.Reasons, "Too late"))
	assert.Equal(t, "Signal generated but entry window closed", sig.Reasons[len(sig.Reasons)-1])
}

func TestGenerate_BearishMedium(t *testing.T) {
	e := testEngine()
	// VWAP and RSI vote sell, momentum is flat.
	sig := e.Generate(snapshot(-0.2, 40, 0.005), nil, OpenWindow())

	assert.Equal(t, domain.DecisionSell, sig.Decision)
	assert.Equal(t, domain.ConfidenceMedium, sig.Confidence)
	assert.InDelta(t, 0.05, sig.PositionSize, 1e-12)
	assert.True(t, hasReason(sig.Reasons, "Price below VWAP (-0.20%)"))
	assert.True(t, hasReason(sig.Reasons, "RSI bearish (40.0)"))
	assert.True(t, hasReason(sig.Reasons, "Momentum flat (0.005%)"))
}

func TestGenerate_MixedVotesHold(t *testing.T) {
	e := testEngine()
	// VWAP buy, RSI sell, momentum flat.
	sig := e.Generate(snapshot(0.2, 40, 0), nil, OpenWindow())

	assert.Equal(t, domain.DecisionHold, sig.Decision)
	assert.Equal(t, domain.ConfidenceLow, sig.Confidence)
	assert.Zero(t, sig.PositionSize)
	assert.Equal(t, "Mixed signals: 1 buy, 1 sell", sig.Reasons[len(sig.Reasons)-1])
}

func TestGenerate_RSIOutsideBandsDoesNotVote(t *testing.T) {
	e := testEngine()

	sig := e.Generate(snapshot(0.2, 80, 0), nil, OpenWindow())
	assert.Equal(t, domain.DecisionHold, sig.Decision)
	assert.Equal(t, 1, sig.BuyVotes)
	assert.True(t, hasReason(sig.Reasons, "RSI overbought (80.0) - caution"))

	sig = e.Generate(snapshot(-0.2, 20, 0), nil, OpenWindow())
	assert.Equal(t, domain.DecisionHold, sig.Decision)
	assert.Equal(t, 1, sig.SellVotes)
	assert.True(t, hasReason(sig.Reasons, "RSI oversold (20.0) - caution"))
}

func TestGenerate_RSIBoundaryFifty(t *testing.T) {
	// 50 sits in both bands; the buy band is checked first.
	e := testEngine()
	sig := e.Generate(snapshot(0, 50, 0), nil, OpenWindow())
	assert.Equal(t, 1, sig.BuyVotes)
	assert.Equal(t, 0, sig.SellVotes)
}

func TestGenerate_HintAddsVote(t *testing.T) {
	e := testEngine()
	hint := &domain.DirectionalHint{Direction: domain.DirectionUp, Confidence: domain.ConfidenceHigh, Source: "AI"}

	// One core buy vote plus the hint reaches the two-vote threshold.
	sig := e.Generate(snapshot(0.2, 80, 0), hint, OpenWindow())
	assert.Equal(t, domain.DecisionBuy, sig.Decision)
	assert.Equal(t, domain.ConfidenceMedium, sig.Confidence)
	assert.Equal(t, 2, sig.BuyVotes)
	assert.True(t, hasReason(sig.Reasons, "AI: UP"))

	// A hint against a unanimous core still loses.
	down := &domain.DirectionalHint{Direction: domain.DirectionDown}
	sig = e.Generate(snapshot(0.3, 62, 0.02), down, OpenWindow())
	assert.Equal(t, domain.DecisionBuy, sig.Decision)
	assert.Equal(t, 1, sig.SellVotes)
	assert.True(t, hasReason(sig.Reasons, "hint: DOWN"))
}

func TestGenerate_InsufficientData(t *testing.T) {
	e := testEngine()
	snap := snapshot(0.3, 62, 0.02)
	snap.SampleCount = 29

	sig := e.Generate(snap, nil, OpenWindow())
	assert.Equal(t, domain.DecisionHold, sig.Decision)
	assert.Equal(t, domain.ConfidenceLow, sig.Confidence)
	assert.Zero(t, sig.PositionSize)
	assert.Zero(t, sig.BuyVotes)
	require.Len(t, sig.Reasons, 1)
	assert.Equal(t, "Insufficient data (29 < 30 for 15-min mode)", sig.Reasons[0])

	cfg := DefaultEngineConfig()
	cfg.IntervalMinutes = 30
	e30 := NewSignalEngine(cfg, discardLogger())
	snap.SampleCount = 59
	sig = e30.Generate(snap, nil, OpenWindow())
	assert.Equal(t, "Insufficient data (59 < 60 for 30-min mode)", sig.Reasons[0])
}

func TestGenerate_MissingIndicatorsDoNotVote(t *testing.T) {
	e := testEngine()
	snap := snapshot(0.3, 62, 0.02)
	snap.RSI = nil
	snap.MomentumPct = nil

	sig := e.Generate(snap, nil, OpenWindow())
	assert.Equal(t, domain.DecisionHold, sig.Decision)
	assert.Equal(t, 1, sig.BuyVotes)
	assert.False(t, hasReason(sig.Reasons, "RSI"))
}

func TestGenerate_SizeClampedToMax(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.MaxPositionPct = 0.07
	e := NewSignalEngine(cfg, discardLogger())

	sig := e.Generate(snapshot(0.3, 62, 0.02), nil, OpenWindow())
	assert.Equal(t, domain.ConfidenceHigh, sig.Confidence)
	assert.InDelta(t, 0.07, sig.PositionSize, 1e-12)

	sig = e.Generate(snapshot(0.3, 62, 0), nil, OpenWindow())
	assert.Equal(t, domain.ConfidenceMedium, sig.Confidence)
	assert.InDelta(t, 0.05, sig.PositionSize, 1e-12)
}

func TestSizeForConfidence(t *testing.T) {
	assert.Equal(t, 0.10, SizeForConfidence(domain.ConfidenceHigh, 0.10))
	assert.Equal(t, 0.05, SizeForConfidence(domain.ConfidenceMedium, 0.10))
	assert.Equal(t, 0.0, SizeForConfidence(domain.ConfidenceLow, 0.10))
}
