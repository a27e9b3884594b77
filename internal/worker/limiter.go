package worker

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles rebuild triggers independently for each dataset directory
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter allowing perMinute rebuilds per directory
func NewLimiter(perMinute float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  perMinuteLimit(perMinute),
		defaultBurst: burst,
	}
}

// Wait blocks until a rebuild of dir is allowed
func (l *Limiter) Wait(ctx context.Context, dir string) error {
	return l.getLimiter(dirKey(dir)).Wait(ctx)
}

// Allow reports whether a rebuild of dir may start now
func (l *Limiter) Allow(dir string) bool {
	return l.getLimiter(dirKey(dir)).Allow()
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter

	return limiter
}

// perMinuteLimit converts a per-minute rate; zero or less disables throttling
func perMinuteLimit(perMinute float64) rate.Limit {
	if perMinute <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Duration(float64(time.Minute) / perMinute))
}

// dirKey normalizes a directory so equivalent spellings share a limiter
func dirKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}
