// Package lock implements cluster-wide mutual exclusion on Redis.  A lock
// is an atomic "set-if-not-exists with TTL" whose value is a random fencing
// token; release and extension run compare-and-act Lua scripts so that a
// holder whose TTL already expired (and whose key now belongs to a new
// holder) can never delete or extend someone else's lock.
package lock

import (
    "context"
    "crypto/rand"
    "encoding/hex"
    "time"

    "github.com/hashicorp/go-hclog"
    "github.com/redis/go-redis/v9"
)

// Client is the slice of the Redis API the lock needs.  *redis.Client
// satisfies it; tests substitute an in-memory fake.
type Client interface {
    redis.Scripter
    SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// extendScript refreshes the TTL only while the key still carries our token.
var extendScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('PEXPIRE', KEYS[1], ARGV[2])
    end
    return 0
`)

// Manager acquires locks against a shared Redis instance.  Lock keys are
// namespaced under "lock:" to keep them apart from other keyspaces.
type Manager struct {
    client Client
    logger hclog.Logger
}

// NewManager returns a Manager backed by the given client.
func NewManager(client Client, logger hclog.Logger) *Manager {
    if logger == nil {
        logger = hclog.NewNullLogger()
    }
    return &Manager{client: client, logger: logger.Named("lock")}
}

// Lock represents a held lock.  ID is the fencing token stored as the key's
// value; only the holder of the current token can release or extend.
type Lock struct {
    ID         string        // fencing token
    Resource   string        // resource the lock guards, e.g. "booking:42"
    TTL        time.Duration // TTL granted at acquisition
    AcquiredAt time.Time

    key     string
    manager *Manager
}

// Acquire attempts to take the lock for resource with the given TTL.
// Returns (nil, nil) when another holder owns it — contention is an
// expected condition, not an error.  A non-nil error means Redis itself
// failed.
func (m *Manager) Acquire(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
    token, err := randomToken(16)
    if err != nil {
        return nil, err
    }
    key := "lock:" + resource
    ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
    if err != nil {
        return nil, err
    }
    if !ok {
        return nil, nil
    }
    return &Lock{
        ID:         token,
        Resource:   resource,
        TTL:        ttl,
        AcquiredAt: time.Now().UTC(),
        key:        key,
        manager:    m,
    }, nil
}

// Release deletes the lock if this holder's token is still current.  A lock
// that already expired (or was taken over) is treated as released; only a
// Redis failure is reported as an error.
func (l *Lock) Release(ctx context.Context) error {
    n, err := releaseScript.Run(ctx, l.manager.client, []string{l.key}, l.ID).Int()
    if err != nil {
        return err
    }
    if n == 0 {
        l.manager.logger.Debug("release skipped, token no longer current", "resource", l.Resource)
    }
    return nil
}

// Extend refreshes the TTL if this holder's token is still current and
// reports whether the extension took effect.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
    n, err := extendScript.Run(ctx, l.manager.client, []string{l.key}, l.ID, ttl.Milliseconds()).Int()
    if err != nil {
        return false, err
    }
    if n == 1 {
        l.TTL = ttl
    }
    return n == 1, nil
}

// randomToken generates a cryptographically random hex token of n bytes.
func randomToken(n int) (string, error) {
    b := make([]byte, n)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}
