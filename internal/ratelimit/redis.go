// Package ratelimit provides request rate limiting abstractions.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter using a Redis fixed-window counter.
// All instances sharing the same Redis see the same windows, so limits
// hold across replicas.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter allowing limit requests
// per key per window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow increments the key's window counter and reports whether the
// caller is within the limit. The window key carries the window start
// so counters reset naturally and expire on their own.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := time.Now().Truncate(l.window).Unix()
	windowKey := fmt.Sprintf("%s:%d", key, windowStart)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return incr.Val() <= int64(l.limit), nil
}

// Ensure RedisLimiter implements Limiter
var _ Limiter = (*RedisLimiter)(nil)
