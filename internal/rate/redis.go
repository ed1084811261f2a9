package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis returns a Limiter backed by Redis counters.
func NewRedis(client redis.UniversalClient, cfg Config) *Limiter {
	return newLimiter(&redisBackend{redis: client}, cfg)
}

type redisBackend struct {
	redis redis.UniversalClient
}

func (b *redisBackend) hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := b.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := b.redis.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	return count <= int64(limit), nil
}

func (b *redisBackend) exhausted(ctx context.Context, key string, limit int, _ time.Duration) (bool, error) {
	count, err := b.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return count >= int64(limit), nil
}

func (b *redisBackend) reset(ctx context.Context, keys ...string) error {
	if err := b.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
