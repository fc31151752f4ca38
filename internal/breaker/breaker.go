// Package breaker implements a circuit breaker protecting the assignment
// pipeline from hammering a failing downstream store.  Lifecycle: closed →
// (failures ≥ threshold) → open → (cooldown elapsed) → half-open →
// (successes ≥ target) → closed, with any half-open failure reopening the
// breaker immediately.
package breaker

import (
    "context"
    "fmt"
    "sync"
    "time"
)

// State is the breaker's position in its lifecycle.
type State string

const (
    StateClosed   State = "closed"
    StateOpen     State = "open"
    StateHalfOpen State = "half-open"
)

// Config tunes the breaker.  Zero values fall back to the defaults used in
// production: 5 consecutive failures, 30s cooldown, 2 trial successes.
type Config struct {
    FailureThreshold  int
    Cooldown          time.Duration
    HalfOpenSuccesses int
}

func (c Config) withDefaults() Config {
    if c.FailureThreshold <= 0 {
        c.FailureThreshold = 5
    }
    if c.Cooldown <= 0 {
        c.Cooldown = 30 * time.Second
    }
    if c.HalfOpenSuccesses <= 0 {
        c.HalfOpenSuccesses = 2
    }
    return c
}

// OpenError is returned by Execute when the breaker refuses to run the
// operation.  RetryAfter is the remaining cooldown.
type OpenError struct {
    RetryAfter time.Duration
}

func (e *OpenError) Error() string {
    return fmt.Sprintf("circuit breaker open, retry after %s", e.RetryAfter)
}

// Breaker is safe for concurrent use.  The clock is injectable so tests can
// step through the cooldown without sleeping.
type Breaker struct {
    mu                sync.Mutex
    cfg               Config
    state             State
    failures          int
    halfOpenSuccesses int
    nextAttemptAt     time.Time
    now               func() time.Time
}

// New returns a closed breaker with the given config.
func New(cfg Config) *Breaker {
    return &Breaker{cfg: cfg.withDefaults(), state: StateClosed, now: time.Now}
}

// NewWithClock is New with an injected clock, for tests.
func NewWithClock(cfg Config, now func() time.Time) *Breaker {
    b := New(cfg)
    b.now = now
    return b
}

// IsOpen reports whether the breaker currently refuses work.  It is also
// the transition point from open to half-open: once the cooldown has
// elapsed the breaker moves to half-open and IsOpen returns false, granting
// the caller a trial execution.  Callers must use IsOpen rather than
// inspecting State to get a fair half-open trial.
func (b *Breaker) IsOpen() bool {
    b.mu.Lock()
    defer b.mu.Unlock()
    if b.state != StateOpen {
        return false
    }
    if b.now().Before(b.nextAttemptAt) {
        return true
    }
    b.state = StateHalfOpen
    b.halfOpenSuccesses = 0
    return false
}

// State returns the current state without triggering transitions.
func (b *Breaker) State() State {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.state
}

// RemainingCooldown returns how long until the next trial is allowed, or
// zero when the breaker is not open.
func (b *Breaker) RemainingCooldown() time.Duration {
    b.mu.Lock()
    defer b.mu.Unlock()
    if b.state != StateOpen {
        return 0
    }
    remaining := b.nextAttemptAt.Sub(b.now())
    if remaining < 0 {
        return 0
    }
    return remaining
}

// Execute runs op with breaker accounting wrapped around it.  When the
// breaker is open it returns *OpenError without invoking op.  Otherwise op
// runs, its success or failure is recorded, and its original error is
// returned unchanged after bookkeeping.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
    if b.IsOpen() {
        return &OpenError{RetryAfter: b.RemainingCooldown()}
    }
    err := op(ctx)
    if err != nil {
        b.recordFailure()
        return err
    }
    b.recordSuccess()
    return nil
}

func (b *Breaker) recordSuccess() {
    b.mu.Lock()
    defer b.mu.Unlock()
    switch b.state {
    case StateHalfOpen:
        b.halfOpenSuccesses++
        if b.halfOpenSuccesses >= b.cfg.HalfOpenSuccesses {
            b.state = StateClosed
            b.failures = 0
            b.halfOpenSuccesses = 0
        }
    case StateClosed:
        b.failures = 0
    }
}

func (b *Breaker) recordFailure() {
    b.mu.Lock()
    defer b.mu.Unlock()
    switch b.state {
    case StateHalfOpen:
        // A failed trial reopens immediately with a fresh cooldown.
        b.state = StateOpen
        b.nextAttemptAt = b.now().Add(b.cfg.Cooldown)
        b.failures = b.cfg.FailureThreshold
    case StateClosed:
        b.failures++
        if b.failures >= b.cfg.FailureThreshold {
            b.state = StateOpen
            b.nextAttemptAt = b.now().Add(b.cfg.Cooldown)
        }
    }
}
