package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/telhawk-systems/issuemirror/internal/metrics"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// slidingWindow keeps one sorted-set member per accepted request, scored by
// arrival time in nanoseconds.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = ARGV[1]
	local window_start = ARGV[2]
	local limit = tonumber(ARGV[3])
	local ttl = ARGV[4]
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

	local current = redis.call('ZCARD', key)
	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, ttl)
		return 1
	end
	return 0
`)

type RedisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisRateLimiter allows at most limit requests per key in any window.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	ttl := int64(math.Ceil(r.window.Seconds()))

	result, err := slidingWindow.Run(ctx, r.client,
		[]string{"issuemirror:ratelimit:" + key},
		now, windowStart, r.limit, ttl, uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.Inc()
	}
	return allowed, nil
}

// NoOpRateLimiter always allows requests.
type NoOpRateLimiter struct{}

func (NoOpRateLimiter) Allow(context.Context, string) (bool, error) {
	return true, nil
}
