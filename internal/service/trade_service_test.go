package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

type memJournal struct {
	signals []domain.Signal
	trades  []domain.TradeRecord
	err     error
}

func (j *memJournal) RecordSignal(_ context.Context, s domain.Signal) error {
	j.signals = append(j.signals, s)
	return j.err
}

func (j *memJournal) RecordTrade(_ context.Context, r domain.TradeRecord) error {
	j.trades = append(j.trades, r)
	return j.err
}

type memSignalStore struct {
	rows []domain.Signal
	err  error
}

func (s *memSignalStore) Insert(_ context.Context, sig domain.Signal) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, sig)
	return nil
}

func (s *memSignalStore) ListRecent(context.Context, domain.ListOpts) ([]domain.Signal, error) {
	return s.rows, s.err
}

func (s *memSignalStore) ListBefore(context.Context, time.Time, int) ([]domain.Signal, error) {
	return nil, nil
}

func TestTradeServiceFansOut(t *testing.T) {
	ctx := context.Background()
	file := &memJournal{}
	store := &memSignalStore{}
	bus := newMemBus()
	svc := NewTradeService(file, store, nil, bus, nil, discardLogger())

	sig := domain.Signal{ID: "s1", Decision: domain.DecisionBuy, Confidence: domain.ConfidenceHigh}
	require.NoError(t, svc.RecordSignal(ctx, sig))
	assert.Len(t, file.signals, 1)
	assert.Len(t, store.rows, 1)
	assert.Len(t, bus.streams[SignalStream], 1)

	pnl := 7.0
	require.NoError(t, svc.RecordTrade(ctx, domain.TradeRecord{OrderID: "o1", PnL: &pnl, Outcome: domain.OutcomeWin}))
	assert.Len(t, file.trades, 1)
	assert.Len(t, bus.streams[TradeStream], 1)
	assert.Contains(t, string(bus.streams[TradeStream][0]), `"pnl":7`)
}

func TestTradeServiceKeepsGoingOnSinkFailure(t *testing.T) {
	ctx := context.Background()
	file := &memJournal{}
	store := &memSignalStore{err: errors.New("pg down")}
	bus := newMemBus()
	svc := NewTradeService(file, store, nil, bus, nil, discardLogger())

	err := svc.RecordSignal(ctx, domain.Signal{ID: "s1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.Len(t, file.signals, 1)
	assert.Len(t, bus.streams[SignalStream], 1)

	// memory serves the API when postgres is failing
	recent, err := svc.RecentSignals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "s1", recent[0].ID)
}

func TestTradeServiceRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewTradeService(nil, nil, nil, nil, nil, discardLogger())
	for i := 0; i < recentCap+5; i++ {
		require.NoError(t, svc.RecordTrade(ctx, domain.TradeRecord{ID: int64(i)}))
	}
	all, err := svc.RecentTrades(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, recentCap)
	assert.Equal(t, int64(recentCap+4), all[0].ID)

	two, err := svc.RecentTrades(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{int64(recentCap + 4), int64(recentCap + 3)}, []int64{two[0].ID, two[1].ID})
}
