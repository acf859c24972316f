package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(minute int) time.Time {
	return time.Date(2026, 3, 1, 14, minute, 30, 0, time.UTC)
}

func TestEntryWindow_FifteenMinute(t *testing.T) {
	w := DefaultEntryWindow(15)

	tests := []struct {
		minute int
		open   bool
		msg    string
	}{
		{0, false, "Too early (minute 0/15, wait for minute 2)"},
		{1, false, "Too early (minute 1/15, wait for minute 2)"},
		{2, true, "Entry window open (15-min, minute 2/15)"},
		{10, true, "Entry window open (15-min, minute 10/15)"},
		{11, false, "Too late (minute 11/15, cutoff was minute 10)"},
		{17, true, "Entry window open (15-min, minute 2/15)"},
		{59, false, "Too late (minute 14/15, cutoff was minute 10)"},
	}
	for _, tt := range tests {
		got := w.Check(at(tt.minute))
		assert.Equal(t, tt.open, got.Open, "minute %d", tt.minute)
		assert.Equal(t, tt.msg, got.Message, "minute %d", tt.minute)
	}
}

func TestEntryWindow_ThirtyMinute(t *testing.T) {
	w := DefaultEntryWindow(30)

	assert.False(t, w.Check(at(2)).Open)
	assert.True(t, w.Check(at(3)).Open)
	assert.True(t, w.Check(at(20)).Open)
	assert.Equal(t, "Too late (minute 21/30, cutoff was minute 20)", w.Check(at(51)).Message)
	assert.Equal(t, "Entry window open (30-min, minute 15/30)", w.Check(at(45)).Message)
}

func TestEntryWindow_UsesUTC(t *testing.T) {
	w := DefaultEntryWindow(15)
	// 14:05 in UTC+05:30 is 08:35 UTC, minute 5 of its interval.
	loc := time.FixedZone("IST", 5*3600+1800)
	got := w.Check(time.Date(2026, 3, 1, 14, 5, 0, 0, loc))
	assert.True(t, got.Open)
	assert.Equal(t, 5, got.Minute)
}

func TestIntervalStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 37, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC), IntervalStart(now, 15))
	assert.Equal(t, time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC), IntervalStart(now, 30))
	assert.Equal(t, time.Date(2026, 3, 1, 14, 45, 0, 0, time.UTC), IntervalEnd(now, 15))
}
