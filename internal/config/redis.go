package config

// Redis backs the distributed booking lock that serialises concurrent
// assignment triggers.  The lock is the only Redis consumer in this
// service, so the client surface stays minimal: an address, an optional
// password, and a startup ping.

import (
    "context"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the lock's Redis instance.  REDIS_HOST and
// REDIS_PORT name the server, or REDIS_ADDR as a host:port shorthand;
// REDIS_PASSWORD is optional.  Returns nil when the server cannot be
// reached within the ping timeout; the caller treats that as a startup
// failure because the coordinator refuses to run without its lock.
func NewRedisClient() *redis.Client {
    addr := os.Getenv("REDIS_ADDR")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    client := redis.NewClient(&redis.Options{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        return nil
    }
    return client
}
