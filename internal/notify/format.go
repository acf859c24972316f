package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// SessionStats summarizes one run of the trading loop.
type SessionStats struct {
	Mode             string
	StartedAt        time.Time
	EndedAt          time.Time
	SignalsGenerated int
	TradesExecuted   int
	Wins             int
	Losses           int
	StartCapital     float64
	FinalCapital     float64
}

// PnL is the session's capital change.
func (s SessionStats) PnL() float64 { return s.FinalCapital - s.StartCapital }

func bullets(lines []string) string {
	return strings.Join(lo.Map(lines, func(l string, _ int) string { return "- " + l }), "\n")
}

func optional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04") + " UTC"
}

// FormatSignal renders a decision point.
func FormatSignal(sig domain.Signal) (string, string) {
	ind := sig.Indicators
	title := fmt.Sprintf("%s | %s confidence | %d-min", sig.Decision, sig.Confidence, sig.IntervalMinutes)
	body := fmt.Sprintf("*Indicators:*\n%s\n\n*Reasons:*\n%s\n\n%s",
		bullets([]string{
			fmt.Sprintf("Price: $%.2f", ind.CurrentPrice),
			"RSI: " + optional(ind.RSI, "%.1f"),
			"VWAP: " + optional(ind.VWAPDeviationPct, "%+.2f%%"),
			"Momentum: " + optional(ind.MomentumPct, "%+.3f%%"),
			fmt.Sprintf("Samples: %d", ind.SampleCount),
		}),
		bullets(sig.Reasons),
		stamp(sig.Time),
	)
	return title, body
}

// FormatTrade renders an executed order.
func FormatTrade(sig domain.Signal, order domain.Order, res domain.OrderResult, market *domain.Market, st domain.RiskStatus, dailyLimit int, now time.Time) (string, string) {
	title := fmt.Sprintf("TRADE EXECUTED | %s %s | %s", sig.Decision, order.Direction, order.Mode)

	var head string
	if market != nil {
		head = fmt.Sprintf("*%s*\n%.1f min left\nhttps://polymarket.com/event/%s\n\n",
			market.Question, market.MinutesLeft(now), market.Slug)
	}
	body := head + fmt.Sprintf("*Trade:*\n%s\n\n*Indicators:*\n%s\n\n*Account:*\n%s\n\nOrder: %s",
		bullets([]string{
			fmt.Sprintf("Direction: %s", order.Direction),
			fmt.Sprintf("Confidence: %s", sig.Confidence),
			fmt.Sprintf("Size: $%.2f at %.2f", order.AmountUSD, order.LimitPrice),
			fmt.Sprintf("BTC: $%.0f", sig.Indicators.CurrentPrice),
		}),
		bullets([]string{
			"RSI: " + optional(sig.Indicators.RSI, "%.1f"),
			"VWAP: " + optional(sig.Indicators.VWAPDeviationPct, "%+.2f%%"),
			"Momentum: " + optional(sig.Indicators.MomentumPct, "%+.3f%%"),
		}),
		bullets([]string{
			fmt.Sprintf("Balance: $%.2f", st.Capital),
			fmt.Sprintf("Today P&L: $%.2f (%+.1f%%)", st.DailyPnL, st.DailyPnLPct),
			fmt.Sprintf("Trades: %d/%d", st.TradesToday, dailyLimit),
		}),
		res.OrderID,
	)
	return title, body
}

// FormatSettlement renders a settled position.
func FormatSettlement(p domain.Position, st domain.RiskStatus) (string, string) {
	title := fmt.Sprintf("POSITION %s | %s", p.Outcome, p.Direction)
	exit := "no price (written off)"
	if p.ExitPrice != nil {
		exit = fmt.Sprintf("$%.2f", *p.ExitPrice)
	}
	body := bullets([]string{
		fmt.Sprintf("Reference: $%.2f", p.ReferencePrice),
		"Exit: " + exit,
		fmt.Sprintf("Size: $%.2f", p.SizeUSD),
		fmt.Sprintf("P&L: $%+.2f", p.RealizedPnL),
		fmt.Sprintf("Balance: $%.2f", st.Capital),
		fmt.Sprintf("Streak: %dW / %dL", st.ConsecutiveWins, st.ConsecutiveLosses),
	})
	return title, body
}

// FormatSummary renders the periodic status summary.
func FormatSummary(st domain.RiskStatus, now time.Time) (string, string) {
	lines := []string{
		fmt.Sprintf("Balance: $%.2f", st.Capital),
		fmt.Sprintf("Today P&L: $%.2f (%+.1f%%)", st.DailyPnL, st.DailyPnLPct),
		fmt.Sprintf("Trades: %d", st.TradesToday),
		fmt.Sprintf("Open positions: %d", st.OpenPositions),
		fmt.Sprintf("Win streak: %d", st.ConsecutiveWins),
		fmt.Sprintf("Loss streak: %d", st.ConsecutiveLosses),
	}
	if st.Halted {
		lines = append(lines, "Halted: "+st.HaltReason)
	}
	return "HOURLY SUMMARY", bullets(lines) + "\n\n" + stamp(now)
}

// FormatHalt renders a risk halt.
func FormatHalt(st domain.RiskStatus) (string, string) {
	body := st.HaltReason
	if st.HaltUntil != nil {
		body += "\nResumes after " + stamp(*st.HaltUntil)
	}
	return "TRADING HALTED", body
}

// FormatStartup renders the startup message.
func FormatStartup(mode, brain string, intervalMinutes int, capital float64, runFor time.Duration, now time.Time) (string, string) {
	duration := "until stopped"
	if runFor > 0 {
		duration = runFor.String()
	}
	body := bullets([]string{
		"Mode: " + mode,
		"Brain: " + brain,
		"Duration: " + duration,
		fmt.Sprintf("Interval: %dm", intervalMinutes),
		fmt.Sprintf("Capital: $%.2f", capital),
	}) + "\n\n" + stamp(now)
	return "TRADING BOT STARTED", body
}

// FormatSession renders the end-of-session summary.
func FormatSession(s SessionStats) (string, string) {
	pct := 0.0
	if s.StartCapital > 0 {
		pct = s.PnL() / s.StartCapital * 100
	}
	body := fmt.Sprintf("*Results:*\n%s\n\n*Activity:*\n%s\n\n%s",
		bullets([]string{
			fmt.Sprintf("Starting: $%.2f", s.StartCapital),
			fmt.Sprintf("Ending: $%.2f", s.FinalCapital),
			fmt.Sprintf("P&L: $%.2f (%+.1f%%)", s.PnL(), pct),
		}),
		bullets([]string{
			fmt.Sprintf("Duration: %s", s.EndedAt.Sub(s.StartedAt).Round(time.Second)),
			fmt.Sprintf("Signals generated: %d", s.SignalsGenerated),
			fmt.Sprintf("Trades executed: %d", s.TradesExecuted),
			fmt.Sprintf("Settled: %d won, %d lost", s.Wins, s.Losses),
		}),
		stamp(s.EndedAt),
	)
	return "TRADING SESSION COMPLETE (" + s.Mode + ")", body
}
