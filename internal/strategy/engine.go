package strategy

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// RSI bands. Readings above the buy band or below the sell band are treated
// as overextended and do not vote.
const (
	rsiBuyLow   = 50.0
	rsiBuyHigh  = 70.0
	rsiSellLow  = 30.0
	rsiSellHigh = 50.0
)

// EngineConfig holds the signal engine thresholds.
type EngineConfig struct {
	IntervalMinutes      int
	VWAPThresholdPct     float64
	MomentumThresholdPct float64
	BasePositionPct      float64
	// MaxPositionPct caps the returned fraction. Zero disables the cap.
	MaxPositionPct float64
	MinSamples15m  int
	MinSamples30m  int
}

// DefaultEngineConfig returns the standard thresholds for a 15-minute market.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		IntervalMinutes:      15,
		VWAPThresholdPct:     0.15,
		MomentumThresholdPct: 0.01,
		BasePositionPct:      0.10,
		MinSamples15m:        30,
		MinSamples30m:        60,
	}
}

// SignalEngine turns an indicator snapshot and an optional directional hint
// into a BUY/SELL/HOLD decision. It is stateless; Generate is safe for
// concurrent use.
type SignalEngine struct {
	cfg    EngineConfig
	logger *slog.Logger
}

// NewSignalEngine creates a SignalEngine.
func NewSignalEngine(cfg EngineConfig, logger *slog.Logger) *SignalEngine {
	return &SignalEngine{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", "updown")),
	}
}

// Name returns the strategy identifier.
func (e *SignalEngine) Name() string { return "updown" }

// Config returns the engine thresholds.
func (e *SignalEngine) Config() EngineConfig { return e.cfg }

// MinSamples returns the data-quality threshold for the configured interval.
func (e *SignalEngine) MinSamples() int {
	if e.cfg.IntervalMinutes == 30 {
		return e.cfg.MinSamples30m
	}
	return e.cfg.MinSamples15m
}

// Generate evaluates the voters and returns the resulting signal. The signal
// ID is left empty for the caller to assign.
func (e *SignalEngine) Generate(snap domain.IndicatorSnapshot, hint *domain.DirectionalHint, window WindowState) domain.Signal {
	sig := domain.Signal{
		Time:            snap.Time,
		Decision:        domain.DecisionHold,
		Confidence:      domain.ConfidenceLow,
		EntryWindowOpen: window.Open,
		IntervalMinutes: e.cfg.IntervalMinutes,
		Indicators:      snap,
		Hint:            hint,
	}

	if snap.CurrentPrice <= 0 {
		sig.Reasons = append(sig.Reasons, "Data error: no current price")
		return sig
	}
	if need := e.MinSamples(); snap.SampleCount < need {
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("Insufficient data (%d < %d for %d-min mode)",
			snap.SampleCount, need, e.cfg.IntervalMinutes))
		return sig
	}

	if !window.Open && window.Message != "" {
		sig.Reasons = append(sig.Reasons, window.Message)
	}

	var buy, sell int

	if dev := snap.VWAPDeviationPct; dev != nil {
		switch {
		case *dev > e.cfg.VWAPThresholdPct:
			buy++
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("Price above VWAP (+%.2f%%)", *dev))
		case *dev < -e.cfg.VWAPThresholdPct:
			sell++
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("Price below VWAP (%.2f%%)", *dev))
		default:
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("VWAP neutral (%.2f%%)", *dev))
		}
	}

	if rsi := snap.RSI; rsi != nil {
		switch {
		case *rsi >= rsiBuyLow && *rsi <= rsiBuyHigh:
			buy++
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("RSI bullish (%.1f)", *rsi))
		case *rsi >= rsiSellLow && *rsi <= rsiSellHigh:
			sell++
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("RSI bearish (%.1f)", *rsi))
		case *rsi > rsiBuyHigh:
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("RSI overbought (%.1f) - caution", *rsi))
		default:
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("RSI oversold (%.1f) - caution", *rsi))
		}
	}

	if mom := snap.MomentumPct; mom != nil {
		switch {
		case *mom > e.cfg.MomentumThresholdPct:
			buy++
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("Momentum positive (+%.3f%%)", *mom))
		case *mom < -e.cfg.MomentumThresholdPct:
			sell++
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("Momentum negative (%.3f%%)", *mom))
		default:
			sig.Reasons = append(sig.Reasons, fmt.Sprintf("Momentum flat (%.3f%%)", *mom))
		}
	}

	if hint != nil {
		switch hint.Direction {
		case domain.DirectionUp:
			buy++
			sig.Reasons = append(sig.Reasons, hintReason(hint))
		case domain.DirectionDown:
			sell++
			sig.Reasons = append(sig.Reasons, hintReason(hint))
		}
	}

	sig.BuyVotes, sig.SellVotes = buy, sell

	switch {
	case buy >= 2 && buy > sell:
		sig.Decision = domain.DecisionBuy
		sig.Confidence = confidenceFor(buy)
	case sell >= 2 && sell > buy:
		sig.Decision = domain.DecisionSell
		sig.Confidence = confidenceFor(sell)
	default:
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("Mixed signals: %d buy, %d sell", buy, sell))
	}
	sig.PositionSize = e.sizeFor(sig.Decision, sig.Confidence)

	if !window.Open && sig.Decision != domain.DecisionHold {
		sig.Decision = domain.DecisionHold
		sig.PositionSize = 0
		sig.Reasons = append(sig.Reasons, "Signal generated but entry window closed")
	}

	e.logger.Debug("signal evaluated",
		slog.String("decision", string(sig.Decision)),
		slog.String("confidence", string(sig.Confidence)),
		slog.Int("buy_votes", buy),
		slog.Int("sell_votes", sell),
		slog.Bool("window_open", window.Open),
	)
	return sig
}

func (e *SignalEngine) sizeFor(d domain.Decision, c domain.Confidence) float64 {
	if d == domain.DecisionHold {
		return 0
	}
	size := SizeForConfidence(c, e.cfg.BasePositionPct)
	if e.cfg.MaxPositionPct > 0 {
		size = math.Min(size, e.cfg.MaxPositionPct)
	}
	return size
}

// SizeForConfidence maps a confidence tier to a fraction of base: HIGH gets
// the full base, MEDIUM half, LOW nothing.
func SizeForConfidence(c domain.Confidence, base float64) float64 {
	switch c {
	case domain.ConfidenceHigh:
		return base
	case domain.ConfidenceMedium:
		return base / 2
	default:
		return 0
	}
}

func confidenceFor(aligned int) domain.Confidence {
	switch {
	case aligned >= 3:
		return domain.ConfidenceHigh
	case aligned == 2:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func hintReason(h *domain.DirectionalHint) string {
	src := h.Source
	if src == "" {
		src = "hint"
	}
	return fmt.Sprintf("%s: %s", src, h.Direction)
}
