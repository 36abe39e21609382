package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter decides whether a sender may issue another chat command
type RateLimiter interface {
	Allow(ctx context.Context, subject string) (bool, error)
}

var chatRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisRateLimiter is a fixed-window counter per sender shared across replicas
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a limiter allowing limit commands per window
func NewRedisRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "finbot:rate_limit"
	}
	return &RedisRateLimiter{
		client: client,
		prefix: trimmed,
		limit:  limit,
		window: window,
	}
}

// Allow implements RateLimiter. A zero limit or empty subject always passes.
func (r *RedisRateLimiter) Allow(ctx context.Context, subject string) (bool, error) {
	if r == nil || r.client == nil || r.limit <= 0 || r.window <= 0 {
		return true, nil
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return true, nil
	}

	windowMs := r.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:chat:%s", r.prefix, subject)
	count, err := chatRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", subject, err)
	}
	return count <= int64(r.limit), nil
}
