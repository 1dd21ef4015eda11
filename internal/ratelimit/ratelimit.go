// Package ratelimit paces outbound requests to vendor hosts. Pagination loops
// throttle between page fetches so a full-catalog pull does not trip a
// vendor's anti-scraping defenses.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Limiter interface {
	Wait(ctx context.Context) error
}

// Fixed enforces a minimum gap between successive calls, with optional jitter
// up to max.
type Fixed struct {
	min    time.Duration
	max    time.Duration
	last   time.Time
	mu     sync.Mutex
	jitter bool
}

func NewFixed(delay time.Duration) *Fixed {
	return &Fixed{min: delay, max: delay}
}

func NewJittered(min, max time.Duration) *Fixed {
	return &Fixed{min: min, max: max, jitter: true}
}

func (f *Fixed) Wait(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delay := f.min
	if f.jitter && f.max > f.min {
		delay += time.Duration(rand.Int63n(int64(f.max - f.min)))
	}

	if wait := delay - time.Since(f.last); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	f.last = time.Now()
	return nil
}

// Backoff stretches the gap multiplicatively after consecutive upstream
// failures and shrinks it back after sustained success. Bulk pagination uses
// it so a vendor that starts serving block pages gets slower retries instead
// of a hammering loop.
type Backoff struct {
	*Fixed
	failures  int
	successes int
	threshold int
	factor    float64
	ceiling   time.Duration
	floor     time.Duration
}

func NewBackoff(delay, ceiling time.Duration) *Backoff {
	return &Backoff{
		Fixed:     NewFixed(delay),
		threshold: 3,
		factor:    2,
		ceiling:   ceiling,
		floor:     delay,
	}
}

func (b *Backoff) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++
	b.failures = 0

	if b.successes >= 5 && b.min > b.floor {
		b.min = max(b.floor, time.Duration(float64(b.min)*0.8))
		b.max = b.min
		b.successes = 0
	}
}

func (b *Backoff) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.successes = 0

	if b.failures >= b.threshold {
		b.min = min(b.ceiling, time.Duration(float64(b.min)*b.factor))
		b.max = b.min
		b.failures = 0
	}
}

// Delay reports the current inter-request gap.
func (b *Backoff) Delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.min
}
