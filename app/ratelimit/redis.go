package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisLimiter is a fixed-window limiter backed by shared Redis counters, so
// every service instance observes the same window. Counting relies on Redis
// atomic INCR/EXPIRE; no application-level locking.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedis creates a shared limiter on top of client.
func NewRedis(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

// Allow counts one request against key's current window. A backend error is
// returned to the caller, which decides the fail-open/fail-closed policy.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	rkey := keyPrefix + key

	count, err := l.client.Incr(ctx, rkey).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, rkey, l.window).Err(); err != nil {
			return Decision{}, err
		}
	}

	ttl, err := l.client.TTL(ctx, rkey).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     time.Now().Add(ttl),
	}, nil
}
