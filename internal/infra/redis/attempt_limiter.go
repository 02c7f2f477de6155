package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter counts failed logins in Redis so the lockout holds across
// instances. Each failure refreshes the key TTL to the lockout window.
type AttemptLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewAttemptLimiter(client *redis.Client, max int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{client: client, max: int64(max), window: window}
}

func (l *AttemptLimiter) Blocked(ctx context.Context, key string) (bool, time.Duration, error) {
	count, err := l.client.Get(ctx, l.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if count < l.max {
		return false, 0, nil
	}
	ttl, err := l.client.TTL(ctx, l.key(key)).Result()
	if err != nil {
		return false, 0, err
	}
	return true, ttl, nil
}

func (l *AttemptLimiter) Fail(ctx context.Context, key string) error {
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, l.key(key))
	pipe.Expire(ctx, l.key(key), l.window)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

func (l *AttemptLimiter) key(key string) string {
	return "login:attempts:" + key
}
