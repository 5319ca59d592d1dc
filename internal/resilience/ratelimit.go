package resilience

import (
	"sync"
	"time"
)

// RateLimiter bounds the number of calls admitted within a trailing window.
// It keeps the timestamps of admitted calls and prunes those older than the
// window on every acquisition; prune-then-append runs under one lock so
// concurrent callers cannot overshoot the budget.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	stamps []time.Time
}

// NewRateLimiter admits up to max calls per trailing window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{max: max, window: window, now: time.Now}
}

// Acquire records the call and returns true when the budget allows it,
// otherwise returns false without recording.
func (l *RateLimiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.stamps[:0]
	for _, ts := range l.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.stamps = kept

	if len(l.stamps) >= l.max {
		return false
	}
	l.stamps = append(l.stamps, now)
	return true
}
