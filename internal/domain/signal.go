package domain

import (
	"context"
	"time"
)

// Decision is the discrete trading action of a signal.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// Confidence is the strength tier of a signal. It maps directly to a
// position size.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Direction is the side of an up/down market a decision bets on.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Direction maps BUY to UP and SELL to DOWN. HOLD has no direction.
func (d Decision) Direction() (Direction, bool) {
	switch d {
	case DecisionBuy:
		return DirectionUp, true
	case DecisionSell:
		return DirectionDown, true
	default:
		return "", false
	}
}

// Signal is produced once per interval by the signal engine and logged for
// audit. It is never mutated after creation.
type Signal struct {
	ID              string
	Time            time.Time
	Decision        Decision
	Confidence      Confidence
	PositionSize    float64 // fraction of capital, 0..max position pct
	Reasons         []string
	EntryWindowOpen bool
	BuyVotes        int
	SellVotes       int
	IntervalMinutes int
	Indicators      IndicatorSnapshot
	Hint            *DirectionalHint
}

// Actionable reports whether the signal asks for a trade.
func (s Signal) Actionable() bool {
	return s.Decision != DecisionHold && s.Confidence != ConfidenceLow
}

// DirectionalHint is one extra vote supplied by an external oracle.
type DirectionalHint struct {
	Direction  Direction
	Confidence Confidence
	Source     string
	Reason     string
}

// HintOracle is the optional directional-hint capability. A nil hint with a
// nil error means the oracle abstains.
type HintOracle interface {
	Hint(ctx context.Context, snap IndicatorSnapshot, market *Market) (*DirectionalHint, error)
}

// BotStatus is a summary of the bot's current operational state.
type BotStatus struct {
	Mode             string
	SessionID        string
	StartedAt        time.Time
	UptimeSeconds    int64
	LastTick         time.Time
	LastInterval     time.Time
	SignalsGenerated int
	TradesExecuted   int
	LastSignal       *Signal
}
