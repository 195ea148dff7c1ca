package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps attempt timestamps per key in process. State is lost on
// restart and is not shared between instances.
type MemoryLimiter struct {
	mu          sync.Mutex
	attempts    map[string][]time.Time
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewMemoryLimiter creates an empty limiter using the wall clock.
func NewMemoryLimiter(maxAttempts int, window time.Duration) *MemoryLimiter {
	return NewMemoryLimiterWithClock(maxAttempts, window, time.Now)
}

// NewMemoryLimiterWithClock creates an empty limiter reading time from now.
func NewMemoryLimiterWithClock(maxAttempts int, window time.Duration, now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		attempts:    make(map[string][]time.Time),
		maxAttempts: maxAttempts,
		window:      window,
		now:         now,
	}
}

func (l *MemoryLimiter) CheckAndRecord(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(l.attempts[key], now)
	if len(recent) >= l.maxAttempts {
		l.attempts[key] = recent
		return false, nil
	}

	l.attempts[key] = append(recent, now)

	return true, nil
}

// Prune drops attempts outside the window and forgets keys left empty. It
// returns the number of keys removed.
func (l *MemoryLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, stamps := range l.attempts {
		recent := l.prune(stamps, now)
		if len(recent) == 0 {
			delete(l.attempts, key)
			removed++
			continue
		}
		l.attempts[key] = recent
	}

	return removed
}

func (l *MemoryLimiter) prune(stamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)

	kept := stamps[:0]
	for _, ts := range stamps {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}

	return kept
}
