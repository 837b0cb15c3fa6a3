// Package ratelimit implements the per-worker request gate.
//
// Each worker owns one Limiter; nothing is shared across processes. The gate
// enforces a minimum spacing between a worker's outbound requests using a
// token bucket with burst 1. State is in-process only and resets on worker
// restart; the floor still applies to the first request after a restart, so
// the worst case after a crash loop is one request per delay window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/blur702/legiscrawl/internal/metrics"
)

// Limiter gates one worker's outbound requests.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter enforcing at least minDelay between requests.
// minDelay <= 0 disables the gate.
func New(minDelay time.Duration) *Limiter {
	if minDelay <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	l := rate.NewLimiter(rate.Every(minDelay), 1)
	// Drain the initial token so the very first request also waits the
	// full delay. This bounds the burst a restarted worker can produce.
	l.Allow()
	return &Limiter{limiter: l}
}

// Wait blocks until the next request is allowed, or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitWait(waited)
	}
	return nil
}
