package providers

import (
	"context"
	"math"
	"time"
)

// Backoff implements the 2s/4s/8s exponential retry schedule spec §5
// asks for on recoverable provider errors, grounded on
// llm-service/internal/providers/rate_limiter.go's RateLimiter.Wait
// polling idiom.
type Backoff struct {
	Base    time.Duration
	MaxTry  int
}

// NewBackoff builds the default schedule: one immediate attempt plus
// up to three retries after 2s, 4s and 8s.
func NewBackoff() Backoff {
	return Backoff{Base: 2 * time.Second, MaxTry: 4}
}

// Delay returns the wait before attempt (0-indexed): attempt 0 has no
// delay, attempt 1 waits Base, attempt 2 waits 2*Base, and so on.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(float64(b.Base) * math.Pow(2, float64(attempt-1)))
}

// Sleep waits out Delay(attempt) or returns ctx.Err() if ctx ends first.
func (b Backoff) Sleep(ctx context.Context, attempt int) error {
	d := b.Delay(attempt)
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ConcurrencyLimiter caps how many in-flight calls a single provider
// client allows, mirroring RateLimiter's concurrentReq/ConcurrentRequests
// gate but expressed as a buffered-channel semaphore (the same
// primitive concurrency_manager.go's AcquirePermit uses).
type ConcurrencyLimiter struct {
	slots chan struct{}
}

// NewConcurrencyLimiter builds a limiter allowing up to max concurrent
// holders. max <= 0 means unlimited.
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	if max <= 0 {
		return &ConcurrencyLimiter{}
	}
	return &ConcurrencyLimiter{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free or ctx ends.
func (c *ConcurrencyLimiter) Acquire(ctx context.Context) error {
	if c.slots == nil {
		return nil
	}
	select {
	case c.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a previously acquired slot.
func (c *ConcurrencyLimiter) Release() {
	if c.slots == nil {
		return
	}
	<-c.slots
}
