package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one rate-limit check, with the values needed for
// standard rate-limit response headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter bounds request counts per client key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter is a process-local fixed-window limiter. It is only correct
// for a single instance; multi-instance deployments use the Redis limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*window
}

type window struct {
	count int
	reset time.Time
}

// NewInMemory creates a process-local limiter.
func NewInMemory(limit int, windowSize time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  windowSize,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow counts one request against key's current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++

	remaining := l.limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     w.reset,
	}, nil
}
