package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestThrottle(t *testing.T, max int, window time.Duration) (*RedisThrottle, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisThrottle(client, max, window), mr
}

func TestRedisThrottle_BlocksAfterMaxFailures(t *testing.T) {
	th, _ := newTestThrottle(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := th.Allow(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i)
		require.NoError(t, th.Fail(ctx, "alice@example.com"))
	}

	ok, err := th.Allow(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = th.Allow(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisThrottle_WindowExpires(t *testing.T) {
	th, mr := newTestThrottle(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, th.Fail(ctx, "k"))
	ok, _ := th.Allow(ctx, "k")
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err := th.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisThrottle_Reset(t *testing.T) {
	th, mr := newTestThrottle(t, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, th.Fail(ctx, "k"))
	assert.True(t, mr.Exists("login_fail:k"))

	require.NoError(t, th.Reset(ctx, "k"))
	assert.False(t, mr.Exists("login_fail:k"))
}

func TestRedisThrottle_FailsOpenOnRedisError(t *testing.T) {
	th, mr := newTestThrottle(t, 1, time.Minute)
	mr.Close()

	ok, err := th.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestNoop(t *testing.T) {
	var th LoginThrottle = Noop{}
	ok, err := th.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, th.Fail(context.Background(), "k"))
	assert.NoError(t, th.Reset(context.Background(), "k"))
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNewRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()
}
