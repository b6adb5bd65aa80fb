package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter runs the same fixed window as RedisLimiter inside one
// process. Keys are namespaced and hashed the same way, so switching
// backends does not change which requests share a window.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	prefix string

	mu      sync.Mutex
	windows map[string]window
	swept   time.Time
}

type window struct {
	hits    int
	expires time.Time
}

func NewMemory(limit int, length time.Duration, prefix string) *MemoryLimiter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  length,
		prefix:  prefix,
		windows: make(map[string]window),
	}
}

// Allow counts every attempt, rejected ones included, like the INCR in the
// Redis script.
func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	k := l.prefix + hashKey(key)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	w, ok := l.windows[k]
	if !ok || !now.Before(w.expires) {
		w = window{expires: now.Add(l.window)}
	}
	w.hits++
	l.windows[k] = w

	if w.hits > l.limit {
		return false, w.expires.Sub(now), nil
	}
	return true, 0, nil
}

// sweep drops finished windows at most once per window length. Callers hold mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < l.window {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.expires) {
			delete(l.windows, k)
		}
	}
	l.swept = now
}
