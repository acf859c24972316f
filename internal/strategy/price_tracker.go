package strategy

import (
	"math"
	"sync"
	"time"

	"github.com/optimizeforall/polymarket-bot/internal/domain"
)

// PriceTracker is a bounded ring buffer of price observations for one asset.
// The sampler is the only writer; the loop and the status API read copies of
// a trailing window, so memory use never grows past the configured capacity.
type PriceTracker struct {
	mu     sync.RWMutex
	buf    []domain.PricePoint
	head   int // index of the oldest point
	size   int
	window time.Duration
}

// NewPriceTracker creates a PriceTracker holding at most capacity points.
// Points older than window relative to the newest point are discarded on every
// Track call; a zero window keeps everything up to capacity.
func NewPriceTracker(capacity int, window time.Duration) *PriceTracker {
	if capacity < 1 {
		capacity = 1
	}
	return &PriceTracker{
		buf:    make([]domain.PricePoint, capacity),
		window: window,
	}
}

// Track records a new observation. Points with a non-positive price, a
// negative volume, or a timestamp older than the newest recorded point are
// rejected so the history stays monotonic.
func (pt *PriceTracker) Track(p domain.PricePoint) bool {
	if p.Price <= 0 || p.Volume < 0 || math.IsNaN(p.Price) {
		return false
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.size > 0 && p.Time.Before(pt.at(pt.size-1).Time) {
		return false
	}

	if pt.size == len(pt.buf) {
		pt.buf[pt.head] = p
		pt.head = (pt.head + 1) % len(pt.buf)
	} else {
		pt.buf[(pt.head+pt.size)%len(pt.buf)] = p
		pt.size++
	}
	pt.trim(p.Time)
	return true
}

// Window returns a copy of the points newer than now-d, oldest first.
func (pt *PriceTracker) Window(now time.Time, d time.Duration) []domain.PricePoint {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	cutoff := now.Add(-d)
	out := make([]domain.PricePoint, 0, pt.size)
	for i := 0; i < pt.size; i++ {
		p := pt.at(i)
		if p.Time.After(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// History returns a copy of every retained point, oldest first.
func (pt *PriceTracker) History() []domain.PricePoint {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	out := make([]domain.PricePoint, pt.size)
	for i := 0; i < pt.size; i++ {
		out[i] = pt.at(i)
	}
	return out
}

// Last returns the newest point.
func (pt *PriceTracker) Last() (domain.PricePoint, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	if pt.size == 0 {
		return domain.PricePoint{}, false
	}
	return pt.at(pt.size - 1), true
}

// Len returns the number of retained points.
func (pt *PriceTracker) Len() int {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.size
}

// Cap returns the maximum number of retained points.
func (pt *PriceTracker) Cap() int {
	return len(pt.buf)
}

// Volatility returns the population standard deviation of the prices newer
// than now-d. If there are fewer than two points, it returns 0.
func (pt *PriceTracker) Volatility(now time.Time, d time.Duration) float64 {
	pts := pt.Window(now, d)
	if len(pts) < 2 {
		return 0
	}

	var sum float64
	for _, p := range pts {
		sum += p.Price
	}
	mean := sum / float64(len(pts))

	var variance float64
	for _, p := range pts {
		d := p.Price - mean
		variance += d * d
	}
	variance /= float64(len(pts))
	return math.Sqrt(variance)
}

// at returns the i-th oldest point. The caller must hold pt.mu.
func (pt *PriceTracker) at(i int) domain.PricePoint {
	return pt.buf[(pt.head+i)%len(pt.buf)]
}

// trim drops points older than the window relative to now.
// The caller must hold pt.mu.
func (pt *PriceTracker) trim(now time.Time) {
	if pt.window <= 0 {
		return
	}
	cutoff := now.Add(-pt.window)
	for pt.size > 0 && pt.buf[pt.head].Time.Before(cutoff) {
		pt.buf[pt.head] = domain.PricePoint{}
		pt.head = (pt.head + 1) % len(pt.buf)
		pt.size--
	}
}
