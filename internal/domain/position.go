package domain

import "time"

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// Outcome of a settled position.
const (
	OutcomeWin  = "WIN"
	OutcomeLoss = "LOSS"
)

// Position is an entered up/down bet awaiting settlement at IntervalEnd.
type Position struct {
	ID             string
	MarketID       string
	TokenID        string
	OrderID        string
	Direction      Direction
	Confidence     Confidence
	SizeUSD        float64
	EntryPrice     float64
	ReferencePrice float64 // underlying price at entry
	IntervalStart  time.Time
	IntervalEnd    time.Time
	Status         PositionStatus
	OpenedAt       time.Time
	ClosedAt       *time.Time
	ExitPrice      *float64 // underlying price at settlement
	RealizedPnL    float64
	Outcome        string
	SettleAttempts int
}

// Shares returns the outcome-token quantity held.
func (p Position) Shares() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return p.SizeUSD / p.EntryPrice
}
