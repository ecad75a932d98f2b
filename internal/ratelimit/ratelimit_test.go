package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, limit int, window time.Duration) (*RedisRateLimiter, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := time.Unix(1_700_000_000, 0)
	limiter := NewRedisRateLimiter(client, limit, window)
	limiter.now = func() time.Time { return clock }
	return limiter, &clock
}

func TestNoOpRateLimiter(t *testing.T) {
	var limiter RateLimiter = NoOpRateLimiter{}
	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestRedisRateLimiter_LimitsWithinWindow(t *testing.T) {
	limiter, _ := newLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisRateLimiter_IndependentKeys(t *testing.T) {
	limiter, _ := newLimiter(t, 1, time.Minute)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisRateLimiter_SlidingWindow(t *testing.T) {
	limiter, clock := newLimiter(t, 2, 10*time.Second)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "k")
	assert.True(t, allowed)

	*clock = clock.Add(6 * time.Second)
	allowed, _ = limiter.Allow(ctx, "k")
	assert.True(t, allowed)

	allowed, _ = limiter.Allow(ctx, "k")
	assert.False(t, allowed)

	// The first request leaves the window.
	*clock = clock.Add(5 * time.Second)
	allowed, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisRateLimiter(client, 1, time.Second).Allow(context.Background(), "k")
	assert.Error(t, err)
}
