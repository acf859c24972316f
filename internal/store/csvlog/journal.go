// Package csvlog writes the human-auditable signal and trade journals as
// append-only CSV files.
package csvlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// SignalHeader is the column layout of the signal journal.
var SignalHeader = []string{
	"timestamp", "signal", "confidence", "position_size", "price", "rsi",
	"vwap_deviation_pct", "momentum_60s", "data_points", "entry_window_open",
	"interval_minutes", "reasons",
}

// TradeHeader is the column layout of the trade journal.
var TradeHeader = []string{
	"timestamp", "interval", "signal", "confidence", "direction", "size_usd",
	"entry_price", "token_id", "order_id", "paper_mode", "balance_after", "pnl",
	"outcome", "reasons",
}

// Journal implements domain.Journal over two CSV files. Every row is
// flushed before Record returns.
type Journal struct {
	mu      sync.Mutex
	signals *appender
	trades  *appender
}

// Open opens (creating if needed) the journal files under dir.
func Open(dir, signalsFile, tradesFile string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csvlog: create dir %s: %w", dir, err)
	}
	signals, err := openAppender(filepath.Join(dir, signalsFile), SignalHeader)
	if err != nil {
		return nil, err
	}
	trades, err := openAppender(filepath.Join(dir, tradesFile), TradeHeader)
	if err != nil {
		_ = signals.close()
		return nil, err
	}
	return &Journal{signals: signals, trades: trades}, nil
}

// RecordSignal appends one signal row.
func (j *Journal) RecordSignal(_ context.Context, sig domain.Signal) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.signals.write(SignalRow(sig)); err != nil {
		return fmt.Errorf("csvlog: write signal: %w", err)
	}
	return nil
}

// RecordTrade appends one trade row.
func (j *Journal) RecordTrade(_ context.Context, rec domain.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.trades.write(TradeRow(rec)); err != nil {
		return fmt.Errorf("csvlog: write trade: %w", err)
	}
	return nil
}

// Paths returns the signal and trade file paths, for archiving.
func (j *Journal) Paths() (signals, trades string) {
	return j.signals.path, j.trades.path
}

// Close closes both files.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	err1 := j.signals.close()
	err2 := j.trades.close()
	if err1 != nil {
		return err1
	}
	return err2
}

// SignalRow renders sig in SignalHeader order. Missing indicators are
// empty cells.
func SignalRow(sig domain.Signal) []string {
	ind := sig.Indicators
	return []string{
		sig.Time.UTC().Format(time.RFC3339),
		string(sig.Decision),
		string(sig.Confidence),
		formatFloat(sig.PositionSize),
		formatFloat(ind.CurrentPrice),
		formatOpt(ind.RSI),
		formatOpt(ind.VWAPDeviationPct),
		formatOpt(ind.MomentumPct),
		strconv.Itoa(ind.SampleCount),
		strconv.FormatBool(sig.EntryWindowOpen),
		strconv.Itoa(sig.IntervalMinutes),
		strings.Join(sig.Reasons, "; "),
	}
}

// TradeRow renders rec in TradeHeader order.
func TradeRow(rec domain.TradeRecord) []string {
	return []string{
		rec.Time.UTC().Format(time.RFC3339),
		rec.Interval.UTC().Format(time.RFC3339),
		string(rec.Decision),
		string(rec.Confidence),
		string(rec.Direction),
		formatFloat(rec.SizeUSD),
		formatFloat(rec.EntryPrice),
		rec.TokenID,
		rec.OrderID,
		strconv.FormatBool(rec.Paper),
		formatFloat(rec.BalanceAfter),
		formatOpt(rec.PnL),
		rec.Outcome,
		strings.Join(rec.Reasons, "; "),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

type appender struct {
	path string
	f    *os.File
	w    *csv.Writer
}

func openAppender(path string, header []string) (*appender, error) {
	info, err := os.Stat(path)
	needHeader := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvlog: open %s: %w", path, err)
	}
	a := &appender{path: path, f: f, w: csv.NewWriter(f)}
	if needHeader {
		if err := a.write(header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csvlog: write header %s: %w", path, err)
		}
	}
	return a, nil
}

func (a *appender) write(row []string) error {
	if err := a.w.Write(row); err != nil {
		return err
	}
	a.w.Flush()
	return a.w.Error()
}

func (a *appender) close() error {
	a.w.Flush()
	return a.f.Close()
}

var _ domain.Journal = (*Journal)(nil)
