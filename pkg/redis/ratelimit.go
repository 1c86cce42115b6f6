package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, counts and admits atomically
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, now)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	end
	return {0, 0}
`)

// RateLimiter implements sliding window rate limiting shared across instances
type RateLimiter struct {
	client *Client
	prefix string
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit requests per key in every window
func NewRateLimiter(client *Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow checks whether a request for key fits the window.
// Returns (allowed, remaining, error). A disabled client allows everything.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	if !r.client.Enabled() {
		return true, r.limit, nil
	}

	fullKey := fmt.Sprintf("%s:ratelimit:%s", r.prefix, key)
	now := time.Now().UnixMicro()
	windowStart := now - r.window.Microseconds()

	result, err := slidingWindow.Run(ctx, r.client.Redis(), []string{fullKey},
		now,
		windowStart,
		r.limit,
		r.window.Milliseconds(),
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	allowed := result[0].(int64) == 1
	remaining := int(result[1].(int64))

	return allowed, remaining, nil
}

// Limit returns the configured requests per window
func (r *RateLimiter) Limit() int {
	return r.limit
}
