// Package ratelimit provides sliding-window admission control for remote
// model calls.
//
// The limiter bounds two independent dimensions over a trailing 60 second
// window: the number of calls and the number of consumed resource units
// (tokens). Call entries are appended on admission; unit entries are
// recorded after a call completes, since consumption is only known then.
//
// # Basic Usage
//
//	limiter, _ := ratelimit.New(&cfg)
//
//	if err := limiter.Acquire(ctx); err != nil {
//	    return err
//	}
//	resp, err := client.Complete(ctx, req)
//	if err == nil {
//	    limiter.RecordUsage(int64(resp.UnitsConsumed))
//	}
//
// # Blocking Behavior
//
// Acquire blocks until both ceilings have headroom, sleeping until the
// oldest in-window entry is due to expire. The total wait is capped by
// MaxWaitSeconds; past the cap the call is admitted anyway and the breach
// is logged, so a misconfigured ceiling degrades throughput instead of
// stalling the workflow. Cancelling the context aborts the wait.
//
// # Tiers
//
// TieredLimiter layers a per-caller limiter on top of a shared global one.
// Global exhaustion blocks every caller; caller exhaustion blocks only
// that caller. Per-caller limiters are created lazily on first use and
// are never removed, so the set grows with the number of distinct caller
// identities seen over the process lifetime.
package ratelimit
