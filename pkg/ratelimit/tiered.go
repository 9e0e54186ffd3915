package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deskops-io/deskops/pkg/config"
)

// TieredLimiter layers per-caller limiters on top of a shared global one.
// A call must pass both gates: global exhaustion blocks every caller,
// caller exhaustion blocks only that caller.
type TieredLimiter struct {
	global *Limiter

	mu        sync.Mutex
	callers   map[string]*Limiter
	newCaller func() *Limiter
}

// NewTiered creates a TieredLimiter from configuration. The config's
// top-level ceilings become the global tier.
func NewTiered(cfg *config.RateLimitConfig, opts ...Option) (*TieredLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}
	if !cfg.Tiered.IsEnabled() {
		return nil, fmt.Errorf("tiered rate limiting is not enabled")
	}

	maxWait := time.Duration(cfg.MaxWaitSeconds * float64(time.Second))
	perRequests := cfg.Tiered.PerCallerRequestsPerMinute
	perUnits := cfg.Tiered.PerCallerUnitsPerMinute

	return &TieredLimiter{
		global:  newLimiter(cfg.RequestsPerMinute, cfg.UnitsPerMinute, maxWait, opts...),
		callers: make(map[string]*Limiter),
		newCaller: func() *Limiter {
			return newLimiter(perRequests, perUnits, maxWait, opts...)
		},
	}, nil
}

// Acquire blocks until both the global and the caller-specific limiter
// admit the call.
func (t *TieredLimiter) Acquire(ctx context.Context, callerID string) error {
	caller := t.caller(callerID)

	if err := t.global.Acquire(ctx); err != nil {
		return err
	}
	return caller.Acquire(ctx)
}

// RecordUsage records consumed units against both tiers.
func (t *TieredLimiter) RecordUsage(callerID string, n int64) {
	t.global.RecordUsage(n)
	t.caller(callerID).RecordUsage(n)
}

// Stats returns the global tier's statistics.
func (t *TieredLimiter) Stats() Stats {
	return t.global.Stats()
}

// CallerStats returns statistics for one caller's tier. The limiter is
// created if the caller has not been seen before.
func (t *TieredLimiter) CallerStats(callerID string) Stats {
	return t.caller(callerID).Stats()
}

// caller returns the limiter for the given identity, creating it on first
// use. Creation is guarded so concurrent first calls for the same caller
// cannot produce duplicate limiters.
func (t *TieredLimiter) caller(callerID string) *Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.callers[callerID]
	if !ok {
		l = t.newCaller()
		t.callers[callerID] = l
	}
	return l
}
