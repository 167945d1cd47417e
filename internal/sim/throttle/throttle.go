package throttle

import (
	"sync"
	"time"
)

// Limiter accepts at most one commit per key per interval. Rejected attempts are dropped by the
// caller; the next accepted one carries the latest value.
type Limiter struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval, now: time.Now, last: map[string]time.Time{}}
}

// Allow reports whether key may commit now, and if not, how long until it may.
func (l *Limiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	if l == nil || l.interval <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, seen := l.last[key]; seen {
		if elapsed := now.Sub(prev); elapsed < l.interval {
			return false, l.interval - elapsed
		}
	}
	l.last[key] = now
	return true, 0
}

// Forget drops the history of key (zone deleted or renamed away).
func (l *Limiter) Forget(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.last, key)
	l.mu.Unlock()
}
