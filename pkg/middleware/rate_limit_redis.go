package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every replica. Each
// window allows floor(rps*window)+burst requests per key.
type RedisLimiter struct {
	client  *redis.Client
	allowed int64
	window  time.Duration
	now     func() time.Time
}

func NewRedisLimiter(client *redis.Client, rps float64, burst int, window time.Duration) *RedisLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisLimiter{
		client:  client,
		allowed: int64(rps*window.Seconds()) + int64(burst),
		window:  window,
		now:     time.Now,
	}
}

func (r *RedisLimiter) Name() string { return "redis" }

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	secs := int64(r.window / time.Second)
	bucket := r.now().Unix() / secs
	redisKey := fmt.Sprintf("rl:%s:%d", key, bucket)

	cnt, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if cnt == 1 {
		_ = r.client.Expire(ctx, redisKey, r.window+time.Second).Err()
	}
	if cnt > r.allowed {
		return false, r.window, nil
	}
	return true, 0, nil
}
