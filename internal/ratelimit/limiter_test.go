package ratelimit

import (
    "errors"
    "testing"
)

func TestAcquireUpToCapacity(t *testing.T) {
    l := New(2)

    r1, err := l.Acquire("restaurant:1")
    if err != nil {
        t.Fatalf("first acquire: %v", err)
    }
    if _, err := l.Acquire("restaurant:1"); err != nil {
        t.Fatalf("second acquire: %v", err)
    }

    _, err = l.Acquire("restaurant:1")
    var exceeded *ExceededError
    if !errors.As(err, &exceeded) {
        t.Fatalf("third acquire: got %v, want *ExceededError", err)
    }
    if exceeded.Key != "restaurant:1" {
        t.Fatalf("error key = %q, want restaurant:1", exceeded.Key)
    }

    // Other keys are unaffected.
    if _, err := l.Acquire("restaurant:2"); err != nil {
        t.Fatalf("different key: %v", err)
    }

    r1()
    if _, err := l.Acquire("restaurant:1"); err != nil {
        t.Fatalf("acquire after release: %v", err)
    }
}

func TestReleaseIsIdempotentAndCleansUp(t *testing.T) {
    l := New(1)
    release, err := l.Acquire("restaurant:7")
    if err != nil {
        t.Fatalf("acquire: %v", err)
    }
    if got := l.InFlight("restaurant:7"); got != 1 {
        t.Fatalf("InFlight = %d, want 1", got)
    }

    release()
    release() // double release must not go negative

    if got := l.InFlight("restaurant:7"); got != 0 {
        t.Fatalf("InFlight after release = %d, want 0", got)
    }
    l.mu.Lock()
    _, lingering := l.inFlight["restaurant:7"]
    l.mu.Unlock()
    if lingering {
        t.Fatal("counter entry not deleted at zero")
    }
}

func TestCapacityFloor(t *testing.T) {
    l := New(0)
    if _, err := l.Acquire("k"); err != nil {
        t.Fatalf("capacity floor of one not applied: %v", err)
    }
    if _, err := l.Acquire("k"); err == nil {
        t.Fatal("second permit granted with capacity floored to one")
    }
}
