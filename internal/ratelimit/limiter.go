// Package ratelimit bounds the number of concurrent assignment operations
// per key (in practice, per restaurant).  Unlike a token bucket this is a
// pure concurrency limit: a permit is held for the duration of an operation
// and returned by calling the release function, so the limiter tracks
// in-flight work rather than request rate.
package ratelimit

import (
    "fmt"
    "sync"
)

// ExceededError is returned by Acquire when a key is at capacity.  The
// coordinator maps it to a retryable outcome rather than a failure.
type ExceededError struct {
    Key string
}

func (e *ExceededError) Error() string {
    return fmt.Sprintf("rate limit exceeded for %q", e.Key)
}

// Limiter is an in-memory per-key concurrency limiter.  Counters are
// process-local by design; the distributed lock, not the limiter, provides
// cross-process guarantees.  Instances are independent so tests can build
// one per case.
type Limiter struct {
    mu       sync.Mutex
    capacity int
    inFlight map[string]int
}

// New returns a limiter allowing capacity concurrent operations per key.
// A capacity below one is raised to one.
func New(capacity int) *Limiter {
    if capacity < 1 {
        capacity = 1
    }
    return &Limiter{capacity: capacity, inFlight: make(map[string]int)}
}

// Acquire takes a permit for key.  At capacity it returns *ExceededError;
// otherwise it increments the in-flight count and returns a release
// function that decrements it.  Release deletes the key's counter when it
// reaches zero so the map does not grow without bound, and is safe to call
// exactly once (typically via defer).
func (l *Limiter) Acquire(key string) (func(), error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    if l.inFlight[key] >= l.capacity {
        return nil, &ExceededError{Key: key}
    }
    l.inFlight[key]++
    var once sync.Once
    release := func() {
        once.Do(func() {
            l.mu.Lock()
            defer l.mu.Unlock()
            l.inFlight[key]--
            if l.inFlight[key] <= 0 {
                delete(l.inFlight, key)
            }
        })
    }
    return release, nil
}

// InFlight reports the current in-flight count for a key.
func (l *Limiter) InFlight(key string) int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return l.inFlight[key]
}
