package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/deskops-io/deskops/pkg/ratelimit"
)

// pacingHeadroom is the headroom fraction below which the invoker paces
// itself before issuing a call, even though Acquire would not block yet.
const pacingHeadroom = 0.2

// pacingDelay is the voluntary pause applied when headroom is low.
const pacingDelay = time.Second

// Limiter is the admission-control surface the invoker depends on.
// *ratelimit.Limiter satisfies it; the tiered variant is adapted via
// CallerLimiter.
type Limiter interface {
	Acquire(ctx context.Context) error
	RecordUsage(n int64)
	Stats() ratelimit.Stats
}

// Invoker wraps a Provider with admission control, retry, and usage
// accounting. All stage calls to the remote model go through one shared
// Invoker so the limiter sees every call.
type Invoker struct {
	provider Provider
	limiter  Limiter
	policy   RetryPolicy

	sleep     func(ctx context.Context, d time.Duration) error
	estimator *TokenEstimator
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithSleep replaces the backoff sleep function. Used in tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) InvokerOption {
	return func(inv *Invoker) {
		inv.sleep = sleep
	}
}

// WithEstimator enables proactive pacing based on estimated prompt size.
func WithEstimator(est *TokenEstimator) InvokerOption {
	return func(inv *Invoker) {
		inv.estimator = est
	}
}

// NewInvoker creates an Invoker.
func NewInvoker(provider Provider, limiter Limiter, policy RetryPolicy, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		provider: provider,
		limiter:  limiter,
		policy:   policy,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke performs one logical model call with up to MaxAttempts physical
// attempts. Each attempt acquires admission from the limiter, performs
// the remote call, and on success records consumed units back into the
// limiter.
//
// Capacity failures retry on the long backoff path; transient failures
// retry on the short path but the final attempt's error is returned
// unchanged; any other failure is fatal and propagates immediately.
// Exhausting the capacity path yields a RetriesExhaustedError.
func (inv *Invoker) Invoke(ctx context.Context, req *Request) (string, error) {
	inv.pace(ctx, req)

	var lastErr error

	for attempt := 1; attempt <= inv.policy.MaxAttempts; attempt++ {
		if err := inv.limiter.Acquire(ctx); err != nil {
			return "", err
		}

		resp, err := inv.provider.Complete(ctx, req)
		if err == nil {
			inv.limiter.RecordUsage(int64(resp.UnitsConsumed))
			return resp.Text, nil
		}

		switch {
		case IsCapacity(err):
			lastErr = err
			if attempt == inv.policy.MaxAttempts {
				break
			}
			wait := inv.policy.CapacityBackoff(attempt)
			slog.Warn("model capacity exceeded, backing off",
				"attempt", attempt, "wait", wait)
			if serr := inv.sleep(ctx, wait); serr != nil {
				return "", serr
			}

		case IsTransient(err):
			if attempt == inv.policy.MaxAttempts {
				// Re-raise the transient error unchanged on the final
				// attempt.
				return "", err
			}
			lastErr = err
			wait := inv.policy.TransientBackoff(attempt)
			slog.Warn("model call failed, retrying",
				"attempt", attempt, "wait", wait, "error", err)
			if serr := inv.sleep(ctx, wait); serr != nil {
				return "", serr
			}

		default:
			return "", err
		}
	}

	return "", &RetriesExhaustedError{Attempts: inv.policy.MaxAttempts, LastErr: lastErr}
}

// pace voluntarily slows down ahead of the limiter when headroom for
// either ceiling has dropped below 20%, or when the estimated prompt
// size alone would not fit the remaining unit budget.
func (inv *Invoker) pace(ctx context.Context, req *Request) {
	stats := inv.limiter.Stats()

	low := stats.LowHeadroom(pacingHeadroom)
	if !low && inv.estimator != nil {
		if est := inv.estimator.EstimateRequest(req); int64(est) > stats.UnitsRemaining {
			low = true
		}
	}
	if low {
		slog.Debug("pacing ahead of rate limit",
			"requests_remaining", stats.RequestsRemaining,
			"units_remaining", stats.UnitsRemaining)
		_ = inv.sleep(ctx, pacingDelay)
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

// CallerLimiter adapts a TieredLimiter to the Limiter interface by
// binding a caller identity.
type CallerLimiter struct {
	Tiered   *ratelimit.TieredLimiter
	CallerID string
}

func (c *CallerLimiter) Acquire(ctx context.Context) error {
	return c.Tiered.Acquire(ctx, c.CallerID)
}

func (c *CallerLimiter) RecordUsage(n int64) {
	c.Tiered.RecordUsage(c.CallerID, n)
}

func (c *CallerLimiter) Stats() ratelimit.Stats {
	return c.Tiered.Stats()
}
