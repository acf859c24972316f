package executor

import (
	"sync"
	"time"
)

// Dedup suppresses repeats of the same key within a time-to-live window. The
// loop uses it to surface each distinct halt once instead of on every tick.
// It is safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // key -> last seen time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup instance that considers a key a duplicate if it
// has been seen within the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Seen returns true if key has been seen within the TTL window of now. If it
// has not been seen (or has expired), it is recorded and false is returned.
func (d *Dedup) Seen(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if lastSeen, ok := d.seen[key]; ok {
		if now.Sub(lastSeen) < d.ttl {
			return true
		}
	}

	d.seen[key] = now
	return false
}

// Cleanup removes entries that have expired beyond the TTL.
func (d *Dedup) Cleanup(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, key)
		}
	}
}

// Len returns the number of tracked keys.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
