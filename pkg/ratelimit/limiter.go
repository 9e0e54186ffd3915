package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deskops-io/deskops/pkg/config"
)

// Window is the trailing interval over which both ceilings apply.
const Window = time.Minute

// minWait is the floor for any computed wait, so a pending entry exactly
// at the boundary can never produce a zero or negative sleep.
const minWait = 100 * time.Millisecond

// Limiter is a dual-dimension sliding-window rate limiter.
//
// All check-then-append sequences run under a single mutex; the lock is
// released while sleeping so RecordUsage and Stats stay responsive.
type Limiter struct {
	requestLimit int64
	unitLimit    int64
	maxWait      time.Duration

	mu       sync.Mutex
	requests window
	units    window

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithSleep replaces the sleep function. Used in tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		l.sleep = sleep
	}
}

// New creates a Limiter from configuration.
func New(cfg *config.RateLimitConfig, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}
	return newLimiter(cfg.RequestsPerMinute, cfg.UnitsPerMinute,
		time.Duration(cfg.MaxWaitSeconds*float64(time.Second)), opts...), nil
}

func newLimiter(requests, units int64, maxWait time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		requestLimit: requests,
		unitLimit:    units,
		maxWait:      maxWait,
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until admitting one more call would not exceed either
// ceiling, then records the call. The cumulative wait is capped by the
// configured maximum; past the cap the call is admitted anyway and the
// breach is logged. Returns the context error if ctx is cancelled while
// waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	var waited time.Duration

	for {
		l.mu.Lock()
		now := l.now()
		boundary := now.Add(-Window)
		l.requests.prune(boundary)
		l.units.prune(boundary)

		wait, reason := l.nextWait(now)
		if wait == 0 {
			l.requests.add(now, 1)
			l.mu.Unlock()
			return nil
		}

		if waited+wait > l.maxWait {
			l.mu.Unlock()
			// Wait out the remaining budget, then admit anyway rather
			// than stalling indefinitely.
			if remaining := l.maxWait - waited; remaining > 0 {
				if err := l.sleep(ctx, remaining); err != nil {
					return err
				}
			}
			slog.Warn("rate limit max wait exceeded, admitting call",
				"reason", reason, "max_wait", l.maxWait)
			l.mu.Lock()
			l.requests.add(l.now(), 1)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		slog.Debug("rate limit waiting", "reason", reason, "wait", wait)
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		waited += wait
	}
}

// nextWait computes how long to wait before the next admission check, or
// zero if a call can be admitted now. Caller holds the lock with both
// windows freshly pruned.
func (l *Limiter) nextWait(now time.Time) (time.Duration, string) {
	if l.requests.count() >= l.requestLimit {
		oldest, _ := l.requests.oldest()
		return waitUntilExpiry(oldest, now), "requests"
	}
	if l.units.sum >= l.unitLimit {
		oldest, ok := l.units.oldest()
		if !ok {
			return minWait, "units"
		}
		return waitUntilExpiry(oldest, now), "units"
	}
	return 0, ""
}

// waitUntilExpiry returns the time until the given entry ages out of the
// window, floored at minWait to prevent busy-spinning.
func waitUntilExpiry(at, now time.Time) time.Duration {
	wait := at.Add(Window).Sub(now)
	if wait < minWait {
		return minWait
	}
	return wait
}

// RecordUsage appends a consumed-unit entry to the usage window. Usage is
// only known once the remote call completes, so it is recorded post hoc
// and is independent of Acquire.
func (l *Limiter) RecordUsage(n int64) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.units.prune(now.Add(-Window))
	l.units.add(now, n)
}

// Stats returns current in-window counts and remaining headroom.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	boundary := l.now().Add(-Window)
	l.requests.prune(boundary)
	l.units.prune(boundary)

	return Stats{
		RequestsInWindow:  l.requests.count(),
		RequestLimit:      l.requestLimit,
		UnitsInWindow:     l.units.sum,
		UnitLimit:         l.unitLimit,
		RequestsRemaining: max64(l.requestLimit-l.requests.count(), 0),
		UnitsRemaining:    max64(l.unitLimit-l.units.sum, 0),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
