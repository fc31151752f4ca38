package breaker

import (
    "context"
    "errors"
    "testing"
    "time"
)

// fakeClock steps time manually so cooldown tests never sleep.
type fakeClock struct {
    now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
    clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
    return NewWithClock(cfg, clock.Now), clock
}

var errBoom = errors.New("boom")

func fail(ctx context.Context) error { return errBoom }
func ok(ctx context.Context) error   { return nil }

func TestOpensAfterFailureThreshold(t *testing.T) {
    b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: 30 * time.Second})
    ctx := context.Background()

    for i := 0; i < 2; i++ {
        if err := b.Execute(ctx, fail); !errors.Is(err, errBoom) {
            t.Fatalf("execute %d: got %v, want errBoom", i, err)
        }
        if b.IsOpen() {
            t.Fatalf("breaker open after %d failures, threshold is 3", i+1)
        }
    }

    if err := b.Execute(ctx, fail); !errors.Is(err, errBoom) {
        t.Fatalf("third execute: got %v, want errBoom", err)
    }
    if !b.IsOpen() {
        t.Fatal("breaker not open after reaching the failure threshold")
    }

    var openErr *OpenError
    if err := b.Execute(ctx, ok); !errors.As(err, &openErr) {
        t.Fatalf("execute while open: got %v, want *OpenError", err)
    }
}

func TestSuccessResetsFailureCount(t *testing.T) {
    b, _ := newTestBreaker(Config{FailureThreshold: 2, Cooldown: 30 * time.Second})
    ctx := context.Background()

    _ = b.Execute(ctx, fail)
    _ = b.Execute(ctx, ok)
    _ = b.Execute(ctx, fail)
    if b.IsOpen() {
        t.Fatal("breaker opened even though failures were not consecutive")
    }
}

func TestHalfOpenAfterCooldownThenCloses(t *testing.T) {
    b, clock := newTestBreaker(Config{FailureThreshold: 1, Cooldown: 10 * time.Second, HalfOpenSuccesses: 2})
    ctx := context.Background()

    _ = b.Execute(ctx, fail)
    if !b.IsOpen() {
        t.Fatal("breaker should open after one failure with threshold 1")
    }

    clock.Advance(9 * time.Second)
    if !b.IsOpen() {
        t.Fatal("breaker reclosed before the cooldown elapsed")
    }

    clock.Advance(2 * time.Second)
    if b.IsOpen() {
        t.Fatal("breaker still refusing work after the cooldown")
    }
    if got := b.State(); got != StateHalfOpen {
        t.Fatalf("state = %s, want %s", got, StateHalfOpen)
    }

    // Two trial successes fully reclose.
    if err := b.Execute(ctx, ok); err != nil {
        t.Fatalf("first trial: %v", err)
    }
    if got := b.State(); got != StateHalfOpen {
        t.Fatalf("state after one trial success = %s, want %s", got, StateHalfOpen)
    }
    if err := b.Execute(ctx, ok); err != nil {
        t.Fatalf("second trial: %v", err)
    }
    if got := b.State(); got != StateClosed {
        t.Fatalf("state after both trial successes = %s, want %s", got, StateClosed)
    }
}

func TestHalfOpenFailureReopensImmediately(t *testing.T) {
    b, clock := newTestBreaker(Config{FailureThreshold: 1, Cooldown: 10 * time.Second, HalfOpenSuccesses: 2})
    ctx := context.Background()

    _ = b.Execute(ctx, fail)
    clock.Advance(11 * time.Second)
    if b.IsOpen() {
        t.Fatal("expected a half-open trial after the cooldown")
    }

    _ = b.Execute(ctx, fail)
    if !b.IsOpen() {
        t.Fatal("half-open failure must reopen the breaker")
    }
    if got := b.RemainingCooldown(); got != 10*time.Second {
        t.Fatalf("RemainingCooldown = %s, want a fresh 10s", got)
    }
}

func TestRemainingCooldownCountsDown(t *testing.T) {
    b, clock := newTestBreaker(Config{FailureThreshold: 1, Cooldown: 10 * time.Second})
    _ = b.Execute(context.Background(), fail)

    clock.Advance(4 * time.Second)
    if got := b.RemainingCooldown(); got != 6*time.Second {
        t.Fatalf("RemainingCooldown = %s, want 6s", got)
    }
}
