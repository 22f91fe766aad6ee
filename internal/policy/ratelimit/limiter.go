// Package ratelimit implements the token bucket gate in front of the
// provider API. Every outbound provider call passes through one shared
// Limiter instance.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/Harryguci/Car-Resource-Crawler/internal/metrics"
)

// Config holds rate limiter configuration: at most Requests calls per
// Window. Burst defaults to 1 so the ceiling holds over any sliding window.
type Config struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Limiter throttles outbound provider calls. Safe for concurrent callers.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter. A non-positive request count disables limiting.
func New(cfg Config) *Limiter {
	r := rate.Inf
	if cfg.Requests > 0 {
		window := cfg.Window
		if window <= 0 {
			window = time.Second
		}
		r = rate.Limit(float64(cfg.Requests) / window.Seconds())
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(r, burst)}
}

// Wait blocks until the next call is permitted, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.RateLimitDelay(delay)
	}
	return nil
}
