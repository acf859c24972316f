package domain

import "time"

// SessionSnapshot is what survives a restart: the risk state and the
// positions still waiting for settlement. Risk.OpenPositions is always
// reconciled against len(Positions) on restore.
type SessionSnapshot struct {
	Risk      RiskState
	Positions []Position
}

// RiskState is owned exclusively by the risk manager. Callers receive
// copies.
type RiskState struct {
	InitialCapital    float64
	CurrentCapital    float64
	DailyStartCapital float64
	TradesToday       int
	ConsecutiveLosses int
	ConsecutiveWins   int
	OpenPositions     int
	Halted            bool
	HaltReason        string
	HaltUntil         time.Time
	Day               string // YYYY-MM-DD of the last daily reset
	UpdatedAt         time.Time
}

// RiskStatus is the reporting view of RiskState.
type RiskStatus struct {
	Capital           float64    `json:"capital"`
	InitialCapital    float64    `json:"initial_capital"`
	DailyPnL          float64    `json:"daily_pnl"`
	DailyPnLPct       float64    `json:"daily_pnl_pct"`
	DrawdownPct       float64    `json:"drawdown_pct"`
	TradesToday       int        `json:"trades_today"`
	ConsecutiveLosses int        `json:"consecutive_losses"`
	ConsecutiveWins   int        `json:"consecutive_wins"`
	OpenPositions     int        `json:"open_positions"`
	Halted            bool       `json:"halted"`
	HaltReason        string     `json:"halt_reason,omitempty"`
	HaltUntil         *time.Time `json:"halt_until,omitempty"`
}
