package rate

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultLocalKeys bounds the number of keys tracked by a local Limiter.
const DefaultLocalKeys = 10000

// NewLocal returns an in-process Limiter. Budgets are per process.
func NewLocal(cfg Config, maxKeys int) *Limiter {
	if maxKeys <= 0 {
		maxKeys = DefaultLocalKeys
	}
	buckets, err := lru.New[string, *rate.Limiter](maxKeys)
	if err != nil {
		panic(err)
	}
	return newLimiter(&localBackend{buckets: buckets}, cfg)
}

// localBackend refills limit tokens per window, so a key that stops hitting
// regains its full budget after one window.
type localBackend struct {
	buckets *lru.Cache[string, *rate.Limiter]
}

func (b *localBackend) bucket(key string, limit int, window time.Duration) *rate.Limiter {
	if lim, ok := b.buckets.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
	if prev, ok, _ := b.buckets.PeekOrAdd(key, lim); ok {
		return prev
	}
	return lim
}

func (b *localBackend) hit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	return b.bucket(key, limit, window).Allow(), nil
}

func (b *localBackend) exhausted(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	lim, ok := b.buckets.Peek(key)
	if !ok {
		return false, nil
	}
	return lim.Tokens() < 1, nil
}

func (b *localBackend) reset(_ context.Context, keys ...string) error {
	for _, key := range keys {
		b.buckets.Remove(key)
	}
	return nil
}
