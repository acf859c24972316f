package csvlog

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestJournalAppendsWithSingleHeader(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)

	j, err := Open(dir, "signals.csv", "trades.csv")
	require.NoError(t, err)
	sig := domain.Signal{
		Time:            ts,
		Decision:        domain.DecisionBuy,
		Confidence:      domain.ConfidenceHigh,
		PositionSize:    0.07,
		EntryWindowOpen: true,
		IntervalMinutes: 15,
		Reasons:         []string{"RSI oversold (28.0)", "Below VWAP, good entry"},
		Indicators: domain.IndicatorSnapshot{
			CurrentPrice: 67000.5,
			RSI:          domain.Float(28),
			SampleCount:  40,
		},
	}
	require.NoError(t, j.RecordSignal(ctx, sig))
	require.NoError(t, j.Close())

	// reopening must not repeat the header
	j, err = Open(dir, "signals.csv", "trades.csv")
	require.NoError(t, err)
	require.NoError(t, j.RecordSignal(ctx, sig))
	pnl := -7.0
	require.NoError(t, j.RecordTrade(ctx, domain.TradeRecord{
		Time: ts, Interval: ts.Add(-5 * time.Minute), Decision: domain.DecisionSell,
		Confidence: domain.ConfidenceMedium, Direction: domain.DirectionDown, SizeUSD: 7,
		EntryPrice: 0.5, OrderID: "PAPER-1", Paper: true, BalanceAfter: 93, PnL: &pnl, Outcome: domain.OutcomeLoss,
	}))
	sigPath, tradePath := j.Paths()
	require.NoError(t, j.Close())

	rows := readCSV(t, sigPath)
	require.Len(t, rows, 3)
	assert.Equal(t, SignalHeader, rows[0])
	assert.Equal(t, []string{
		"2026-03-01T12:05:00Z", "BUY", "HIGH", "0.07", "67000.5", "28", "", "", "40", "true", "15",
		"RSI oversold (28.0); Below VWAP, good entry",
	}, rows[1])

	rows = readCSV(t, tradePath)
	require.Len(t, rows, 2)
	assert.Equal(t, TradeHeader, rows[0])
	assert.Equal(t, "DOWN", rows[1][4])
	assert.Equal(t, "-7", rows[1][11])
	assert.Equal(t, "LOSS", rows[1][12])
	assert.Equal(t, filepath.Join(dir, "trades.csv"), tradePath)
}

func TestTradeRowWithoutPnL(t *testing.T) {
	row := TradeRow(domain.TradeRecord{SizeUSD: 3.5})
	assert.Len(t, row, len(TradeHeader))
	assert.Equal(t, "", row[11])
}
