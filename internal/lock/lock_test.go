package lock

import (
    "context"
    "errors"
    "strings"
    "testing"
    "time"

    "github.com/redis/go-redis/v9"
)

// noScriptErr mimics the protocol error a real server returns for an
// uncached script sha.  It must satisfy redis.Error, or Script.Run will
// not fall back from EvalSha to Eval.
type noScriptErr string

func (e noScriptErr) Error() string { return string(e) }

func (noScriptErr) RedisError() {}

// fakeClient is an in-memory stand-in for the Redis commands the lock
// uses.  EvalSha always reports NOSCRIPT so Script.Run falls through to
// Eval, where the two scripts are recognised by their commands.
type fakeClient struct {
    values map[string]string
    ttls   map[string]time.Duration
}

func newFakeClient() *fakeClient {
    return &fakeClient{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
    cmd := redis.NewBoolCmd(ctx)
    if _, held := f.values[key]; held {
        cmd.SetVal(false)
        return cmd
    }
    f.values[key] = value.(string)
    f.ttls[key] = expiration
    cmd.SetVal(true)
    return cmd
}

func (f *fakeClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
    cmd := redis.NewCmd(ctx)
    key := keys[0]
    token, _ := args[0].(string)
    if f.values[key] != token {
        cmd.SetVal(int64(0))
        return cmd
    }
    switch {
    case strings.Contains(script, "DEL"):
        delete(f.values, key)
        delete(f.ttls, key)
        cmd.SetVal(int64(1))
    case strings.Contains(script, "PEXPIRE"):
        ms, _ := args[1].(int64)
        f.ttls[key] = time.Duration(ms) * time.Millisecond
        cmd.SetVal(int64(1))
    default:
        cmd.SetErr(errors.New("unexpected script"))
    }
    return cmd
}

func (f *fakeClient) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
    cmd := redis.NewCmd(ctx)
    cmd.SetErr(noScriptErr("NOSCRIPT scripts are not cached on the fake"))
    return cmd
}

func (f *fakeClient) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
    return f.Eval(ctx, script, keys, args...)
}

func (f *fakeClient) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
    return f.EvalSha(ctx, sha1, keys, args...)
}

func (f *fakeClient) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
    cmd := redis.NewBoolSliceCmd(ctx)
    cmd.SetVal(make([]bool, len(hashes)))
    return cmd
}

func (f *fakeClient) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
    cmd := redis.NewStringCmd(ctx)
    cmd.SetVal("sha")
    return cmd
}

func TestAcquireAndContention(t *testing.T) {
    client := newFakeClient()
    m := NewManager(client, nil)
    ctx := context.Background()

    lk, err := m.Acquire(ctx, "booking:42", 30*time.Second)
    if err != nil {
        t.Fatalf("acquire: %v", err)
    }
    if lk == nil {
        t.Fatal("acquire returned nil lock on a free resource")
    }
    if lk.ID == "" || len(lk.ID) != 32 {
        t.Fatalf("token %q, want 32 hex chars", lk.ID)
    }
    if lk.Resource != "booking:42" {
        t.Fatalf("resource = %q", lk.Resource)
    }

    // A second caller must see contention, not an error.
    second, err := m.Acquire(ctx, "booking:42", 30*time.Second)
    if err != nil {
        t.Fatalf("contended acquire: %v", err)
    }
    if second != nil {
        t.Fatal("two holders acquired the same resource")
    }

    // A different resource is independent.
    other, err := m.Acquire(ctx, "booking:43", 30*time.Second)
    if err != nil || other == nil {
        t.Fatalf("acquire other resource: lock=%v err=%v", other, err)
    }
}

func TestReleaseOnlyWithCurrentToken(t *testing.T) {
    client := newFakeClient()
    m := NewManager(client, nil)
    ctx := context.Background()

    lk, err := m.Acquire(ctx, "booking:7", time.Second)
    if err != nil || lk == nil {
        t.Fatalf("acquire: lock=%v err=%v", lk, err)
    }

    // Simulate expiry plus takeover by a new holder.
    client.values["lock:booking:7"] = "someone-else"

    if err := lk.Release(ctx); err != nil {
        t.Fatalf("release after takeover: %v", err)
    }
    if got := client.values["lock:booking:7"]; got != "someone-else" {
        t.Fatalf("stale holder deleted the new holder's lock, value=%q", got)
    }

    // The rightful release path removes the key.
    client.values["lock:booking:7"] = lk.ID
    if err := lk.Release(ctx); err != nil {
        t.Fatalf("release: %v", err)
    }
    if _, held := client.values["lock:booking:7"]; held {
        t.Fatal("release left the key behind")
    }
}

func TestExtendOnlyWhileHeld(t *testing.T) {
    client := newFakeClient()
    m := NewManager(client, nil)
    ctx := context.Background()

    lk, err := m.Acquire(ctx, "booking:9", time.Second)
    if err != nil || lk == nil {
        t.Fatalf("acquire: lock=%v err=%v", lk, err)
    }

    ok, err := lk.Extend(ctx, 5*time.Second)
    if err != nil || !ok {
        t.Fatalf("extend while held: ok=%v err=%v", ok, err)
    }
    if got := client.ttls["lock:booking:9"]; got != 5*time.Second {
        t.Fatalf("ttl = %s, want 5s", got)
    }
    if lk.TTL != 5*time.Second {
        t.Fatalf("lock TTL not refreshed, got %s", lk.TTL)
    }

    client.values["lock:booking:9"] = "someone-else"
    ok, err = lk.Extend(ctx, 10*time.Second)
    if err != nil {
        t.Fatalf("extend after takeover: %v", err)
    }
    if ok {
        t.Fatal("stale holder extended the new holder's lock")
    }
}
