package domain

import "time"

// TradeRecord is one append-only journal row for an executed or settled
// trade.
type TradeRecord struct {
	ID           int64
	Time         time.Time
	Interval     time.Time
	Decision     Decision
	Confidence   Confidence
	Direction    Direction
	SizeUSD      float64
	EntryPrice   float64
	TokenID      string
	OrderID      string
	Paper        bool
	BalanceAfter float64
	PnL          *float64
	Outcome      string
	Reasons      []string
}
