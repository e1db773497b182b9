package rateLimit

import (
	"context"
	"fmt"
	"time"

	redisadapter "github.com/robertarktes/eventhub/internal/adapters/redis"
)

type RateLimiter struct {
	redis *redisadapter.Cache
	now   func() time.Time
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis, now: time.Now}
}

// Allow counts one hit for key in the current fixed window of length period.
// Errors are returned to the caller, which decides whether to fail open.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error) {
	window := rl.now().UnixNano() / int64(period)
	fullKey := fmt.Sprintf("rl:%s:%d", key, window)

	n, err := rl.redis.IncrWindow(ctx, fullKey, period)
	if err != nil {
		return false, err
	}
	return n <= int64(rate), nil
}
