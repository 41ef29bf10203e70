package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares fixed-window counters across instances. INCR is atomic in
// Redis, so concurrent requests from the same key cannot slip past the
// ceiling.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, windowDur time.Duration) (int64, time.Time, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// First hit opens the window; the key's TTL is the window deadline.
	if count == 1 {
		if err := s.client.PExpire(ctx, key, windowDur).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		return count, time.Now().Add(windowDur), nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	if ttl < 0 {
		// Key exists without expiry (e.g. PExpire lost to a crash); restore it.
		if err := s.client.PExpire(ctx, key, windowDur).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to restore rate limit window: %w", err)
		}
		ttl = windowDur
	}

	return count, time.Now().Add(ttl), nil
}
