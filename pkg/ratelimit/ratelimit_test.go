package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deskops-io/deskops/pkg/config"
)

// fakeClock drives the limiter without real time. Its sleep function
// advances the clock, so blocking paths are testable synchronously.
type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.slept += d
	c.mu.Unlock()
	return nil
}

func testLimiter(t *testing.T, requests, units int64, maxWait time.Duration) (*Limiter, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg := config.RateLimitConfig{
		RequestsPerMinute: requests,
		UnitsPerMinute:    units,
		MaxWaitSeconds:    maxWait.Seconds(),
	}
	limiter, err := New(&cfg, WithClock(clock.now), WithSleep(clock.sleep))
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	return limiter, clock
}

func TestLimiter_RequestCeilingBlocks(t *testing.T) {
	limiter, clock := testLimiter(t, 5, 1000000, 120*time.Second)
	ctx := context.Background()

	// Admit the full ceiling within one second.
	for i := 0; i < 5; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i+1, err)
		}
		clock.advance(200 * time.Millisecond)
	}
	if slept := clock.slept; slept != 0 {
		t.Fatalf("expected no waiting below the ceiling, slept %v", slept)
	}

	// The 6th call must wait until the 1st admission ages out.
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("acquire 6: %v", err)
	}
	if clock.slept < 59*time.Second {
		t.Errorf("expected 6th acquire to wait at least 59s, waited %v", clock.slept)
	}
}

func TestLimiter_UsageWindowAging(t *testing.T) {
	limiter, clock := testLimiter(t, 100, 1000, time.Minute)

	limiter.RecordUsage(300)
	clock.advance(5 * time.Second)
	limiter.RecordUsage(200)

	stats := limiter.Stats()
	if stats.UnitsInWindow != 500 {
		t.Errorf("expected 500 units in window, got %d", stats.UnitsInWindow)
	}
	if stats.UnitsRemaining != 500 {
		t.Errorf("expected 500 units remaining, got %d", stats.UnitsRemaining)
	}

	// Everything ages out past the trailing window.
	clock.advance(61 * time.Second)
	stats = limiter.Stats()
	if stats.UnitsInWindow != 0 {
		t.Errorf("expected empty usage window, got %d", stats.UnitsInWindow)
	}
}

func TestLimiter_BoundaryEntryExpired(t *testing.T) {
	limiter, clock := testLimiter(t, 100, 1000, time.Minute)

	limiter.RecordUsage(100)

	// An entry exactly at now-60s sits on the boundary and is excluded.
	clock.advance(Window)
	stats := limiter.Stats()
	if stats.UnitsInWindow != 0 {
		t.Errorf("expected boundary entry to be expired, got %d units", stats.UnitsInWindow)
	}
}

func TestLimiter_UnitCeilingBlocks(t *testing.T) {
	limiter, clock := testLimiter(t, 100, 500, 120*time.Second)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	limiter.RecordUsage(500)

	// Usage ceiling is saturated; the next call waits for the usage entry
	// to age out.
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if clock.slept < 59*time.Second {
		t.Errorf("expected wait of at least 59s for unit headroom, waited %v", clock.slept)
	}
}

func TestLimiter_MaxWaitBreachAdmits(t *testing.T) {
	limiter, clock := testLimiter(t, 1, 1000, 2*time.Second)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	// The ceiling is saturated for the next 60s, far beyond the 2s cap.
	// Acquire must admit anyway instead of stalling.
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("expected acquire to proceed past max wait, got %v", err)
	}
	if clock.slept > 2*time.Second {
		t.Errorf("expected wait capped at 2s, waited %v", clock.slept)
	}
}

func TestLimiter_AcquireContextCancelled(t *testing.T) {
	limiter, _ := testLimiter(t, 1, 1000, 120*time.Second)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Acquire(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLimiter_WaitFloor(t *testing.T) {
	now := time.Now()
	if wait := waitUntilExpiry(now.Add(-Window), now); wait != minWait {
		t.Errorf("expected floor %v for expired entry, got %v", minWait, wait)
	}
	if wait := waitUntilExpiry(now, now); wait != Window {
		t.Errorf("expected full window wait, got %v", wait)
	}
}

func TestStats_LowHeadroom(t *testing.T) {
	stats := Stats{
		RequestsInWindow: 45, RequestLimit: 50, RequestsRemaining: 5,
		UnitsInWindow: 100, UnitLimit: 1000, UnitsRemaining: 900,
	}
	if !stats.LowHeadroom(0.2) {
		t.Error("expected low headroom at 10% request capacity remaining")
	}

	stats.RequestsInWindow = 10
	stats.RequestsRemaining = 40
	if stats.LowHeadroom(0.2) {
		t.Error("did not expect low headroom with ample capacity")
	}
}

func tieredConfig(globalRPM, globalUPM, callerRPM, callerUPM int64) *config.RateLimitConfig {
	return &config.RateLimitConfig{
		RequestsPerMinute: globalRPM,
		UnitsPerMinute:    globalUPM,
		MaxWaitSeconds:    120,
		Tiered: &config.TieredRateLimitConfig{
			Enabled:                    config.BoolPtr(true),
			PerCallerRequestsPerMinute: callerRPM,
			PerCallerUnitsPerMinute:    callerUPM,
		},
	}
}

func TestTieredLimiter_CallerExhaustionBlocksOnlyCaller(t *testing.T) {
	clock := newFakeClock()
	tiered, err := NewTiered(tieredConfig(100, 1000000, 2, 100000),
		WithClock(clock.now), WithSleep(clock.sleep))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// Saturate alice's tier.
	for i := 0; i < 2; i++ {
		if err := tiered.Acquire(ctx, "alice"); err != nil {
			t.Fatal(err)
		}
	}
	if clock.slept != 0 {
		t.Fatalf("unexpected wait: %v", clock.slept)
	}

	// bob is unaffected.
	if err := tiered.Acquire(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if clock.slept != 0 {
		t.Errorf("expected bob to pass without waiting, waited %v", clock.slept)
	}

	// alice's next call waits out her own window.
	if err := tiered.Acquire(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if clock.slept < 59*time.Second {
		t.Errorf("expected alice to wait for her tier, waited %v", clock.slept)
	}
}

func TestTieredLimiter_GlobalExhaustionBlocksEveryone(t *testing.T) {
	clock := newFakeClock()
	tiered, err := NewTiered(tieredConfig(2, 1000000, 2, 100000),
		WithClock(clock.now), WithSleep(clock.sleep))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := tiered.Acquire(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := tiered.Acquire(ctx, "bob"); err != nil {
		t.Fatal(err)
	}

	// carol has never called but the global tier is saturated.
	if err := tiered.Acquire(ctx, "carol"); err != nil {
		t.Fatal(err)
	}
	if clock.slept < 59*time.Second {
		t.Errorf("expected carol to wait on the global tier, waited %v", clock.slept)
	}
}

func TestTieredLimiter_LazyCallerCreation(t *testing.T) {
	tiered, err := NewTiered(tieredConfig(100, 1000000, 10, 100000))
	if err != nil {
		t.Fatal(err)
	}

	first := tiered.caller("alice")
	second := tiered.caller("alice")
	if first != second {
		t.Error("expected the same limiter instance for one caller")
	}
	if len(tiered.callers) != 1 {
		t.Errorf("expected 1 caller limiter, got %d", len(tiered.callers))
	}
}

func TestTieredLimiter_RecordUsageBothTiers(t *testing.T) {
	tiered, err := NewTiered(tieredConfig(100, 1000, 10, 500))
	if err != nil {
		t.Fatal(err)
	}

	tiered.RecordUsage("alice", 250)

	if got := tiered.Stats().UnitsInWindow; got != 250 {
		t.Errorf("expected 250 global units, got %d", got)
	}
	if got := tiered.CallerStats("alice").UnitsInWindow; got != 250 {
		t.Errorf("expected 250 caller units, got %d", got)
	}
	if got := tiered.CallerStats("bob").UnitsInWindow; got != 0 {
		t.Errorf("expected no units for bob, got %d", got)
	}
}
