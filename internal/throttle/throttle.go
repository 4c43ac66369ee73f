// Package throttle counts failed logins per account so repeated guessing can be
// cut off. It is disabled unless LOGIN_MAX_FAILURES and REDIS_URL are set.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// LoginThrottle decides whether another login attempt may be checked for key.
type LoginThrottle interface {
	Allow(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Noop never blocks.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, error) { return true, nil }
func (Noop) Fail(context.Context, string) error          { return nil }
func (Noop) Reset(context.Context, string) error         { return nil }

// RedisThrottle keeps one counter per key that expires window after the last failure.
type RedisThrottle struct {
	redis       *redis.Client
	maxFailures int
	window      time.Duration
	prefix      string
}

func NewRedisThrottle(client *redis.Client, maxFailures int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{
		redis:       client,
		maxFailures: maxFailures,
		window:      window,
		prefix:      "login_fail",
	}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (t *RedisThrottle) key(k string) string {
	return t.prefix + ":" + k
}

func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	count, err := t.redis.Get(ctx, t.key(key)).Int()
	if err == redis.Nil {
		return true, nil
	} else if err != nil {
		// fail open
		return true, fmt.Errorf("redis error: %w", err)
	}
	return count < t.maxFailures, nil
}

func (t *RedisThrottle) Fail(ctx context.Context, key string) error {
	redisKey := t.key(key)
	pipe := t.redis.TxPipeline()
	pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (t *RedisThrottle) Reset(ctx context.Context, key string) error {
	return t.redis.Del(ctx, t.key(key)).Err()
}
