package domain

import "time"

// Outcome indexes of an up/down market.
const (
	OutcomeUp   = 0
	OutcomeDown = 1
)

// Market represents a Polymarket up/down prediction market for one
// interval.
type Market struct {
	ID          string
	EventID     string
	Question    string
	Slug        string
	Outcomes    [2]string  // ["Up","Down"]
	TokenIDs    [2]string  // ERC-1155 token IDs (76-digit strings)
	Prices      [2]float64 // last known outcome prices
	ConditionID string
	StartTime   time.Time
	EndTime     time.Time
	UpdatedAt   time.Time
}

// MinutesLeft returns the whole-and-fractional minutes until the market
// closes.
func (m Market) MinutesLeft(now time.Time) float64 {
	return m.EndTime.Sub(now).Minutes()
}

// TokenFor returns the outcome token that a direction buys.
func (m Market) TokenFor(d Direction) string {
	if d == DirectionDown {
		return m.TokenIDs[OutcomeDown]
	}
	return m.TokenIDs[OutcomeUp]
}

// PriceFor returns the last known price of the outcome a direction buys.
func (m Market) PriceFor(d Direction) float64 {
	if d == DirectionDown {
		return m.Prices[OutcomeDown]
	}
	return m.Prices[OutcomeUp]
}
