package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRateLimiter_DisabledPaths(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name    string
		limiter *RedisRateLimiter
		subject string
	}{
		{"nil limiter", nil, "5511999990000"},
		{"no client", NewRedisRateLimiter(nil, "", 5, time.Minute), "5511999990000"},
		{"zero limit", NewRedisRateLimiter(client, "", 0, time.Minute), "5511999990000"},
		{"zero window", NewRedisRateLimiter(client, "", 5, 0), "5511999990000"},
		{"blank subject", NewRedisRateLimiter(client, "", 5, time.Minute), "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := tt.limiter.Allow(ctx, tt.subject)
			require.NoError(t, err)
			assert.True(t, allowed)
		})
	}
}

func TestNewRedisRateLimiter_Prefix(t *testing.T) {
	assert.Equal(t, "finbot:rate_limit", NewRedisRateLimiter(nil, "", 1, time.Minute).prefix)
	assert.Equal(t, "bot", NewRedisRateLimiter(nil, " bot: ", 1, time.Minute).prefix)
}

func TestRedisRateLimiter_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisRateLimiter(client, "", 5, time.Minute)
	allowed, err := limiter.Allow(context.Background(), "5511999990000")
	assert.Error(t, err)
	assert.False(t, allowed)
}
