package strategy

import (
	"fmt"
	"time"
)

// WindowState is the result of an EntryWindow check at one instant.
type WindowState struct {
	Open    bool   `json:"open"`
	Minute  int    `json:"minute"`
	Message string `json:"message"`
}

// OpenWindow returns an open window state for callers that already know the
// answer.
func OpenWindow() WindowState { return WindowState{Open: true} }

// EntryWindow decides whether a wall-clock instant falls inside the tradeable
// sub-range of a fixed-length market interval.
type EntryWindow struct {
	IntervalMinutes int
	MinEntryMinute  int
	MaxEntryMinute  int
}

// DefaultEntryWindow returns the standard window for a 15 or 30 minute
// interval: minutes 2-10 and 3-20 respectively.
func DefaultEntryWindow(intervalMinutes int) EntryWindow {
	if intervalMinutes == 30 {
		return EntryWindow{IntervalMinutes: 30, MinEntryMinute: 3, MaxEntryMinute: 20}
	}
	return EntryWindow{IntervalMinutes: 15, MinEntryMinute: 2, MaxEntryMinute: 10}
}

// Check reports whether now is inside the entry window. The bounds are
// inclusive.
func (w EntryWindow) Check(now time.Time) WindowState {
	if w.IntervalMinutes <= 0 {
		return WindowState{Message: fmt.Sprintf("Invalid interval: %d", w.IntervalMinutes)}
	}
	minute := now.UTC().Minute() % w.IntervalMinutes

	switch {
	case minute < w.MinEntryMinute:
		return WindowState{
			Minute:  minute,
			Message: fmt.Sprintf("Too early (minute %d/%d, wait for minute %d)", minute, w.IntervalMinutes, w.MinEntryMinute),
		}
	case minute > w.MaxEntryMinute:
		return WindowState{
			Minute:  minute,
			Message: fmt.Sprintf("Too late (minute %d/%d, cutoff was minute %d)", minute, w.IntervalMinutes, w.MaxEntryMinute),
		}
	default:
		return WindowState{
			Open:    true,
			Minute:  minute,
			Message: fmt.Sprintf("Entry window open (%d-min, minute %d/%d)", w.IntervalMinutes, minute, w.IntervalMinutes),
		}
	}
}

// IntervalStart floors now to the start of its interval in UTC.
func IntervalStart(now time.Time, intervalMinutes int) time.Time {
	return now.UTC().Truncate(time.Duration(intervalMinutes) * time.Minute)
}

// IntervalEnd returns the instant the interval containing now settles.
func IntervalEnd(now time.Time, intervalMinutes int) time.Time {
	return IntervalStart(now, intervalMinutes).Add(time.Duration(intervalMinutes) * time.Minute)
}
