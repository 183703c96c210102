// Package ratelimit provides request rate limiting abstractions.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements Limiter using in-process counters.
// Suitable for single-node deployments. Counters from expired windows
// are dropped lazily as keys are touched.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]*windowCount
	limit  int
	window time.Duration
	now    func() time.Time
}

type windowCount struct {
	start time.Time
	count int
}

// NewMemoryLimiter creates an in-memory limiter allowing limit requests
// per key per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		counts: make(map[string]*windowCount),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow increments the key's window counter and reports whether the
// caller is within the limit.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := l.now().Truncate(l.window)

	wc, ok := l.counts[key]
	if !ok || wc.start.Before(windowStart) {
		wc = &windowCount{start: windowStart}
		l.counts[key] = wc
	}
	wc.count++

	return wc.count <= l.limit, nil
}

// Ensure MemoryLimiter implements Limiter
var _ Limiter = (*MemoryLimiter)(nil)
