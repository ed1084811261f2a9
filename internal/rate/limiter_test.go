package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, cfg), mr
}

func limiters(t *testing.T, cfg Config) map[string]*Limiter {
	t.Helper()
	redisLimiter, _ := newRedisLimiter(t, cfg)
	return map[string]*Limiter{
		"redis": redisLimiter,
		"local": NewLocal(cfg, 0),
	}
}

func TestAllowRefreshBudget(t *testing.T) {
	for name, l := range limiters(t, Config{MaxRefreshPerMinute: 3}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				if err := l.AllowRefresh(ctx, "fp-1"); err != nil {
					t.Fatalf("refresh %d rejected: %v", i+1, err)
				}
			}
			if err := l.AllowRefresh(ctx, "fp-1"); !errors.Is(err, ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited, got %v", err)
			}
			if err := l.AllowRefresh(ctx, "fp-2"); err != nil {
				t.Fatalf("other sessions must keep their own budget: %v", err)
			}
		})
	}
}

func TestRefreshThrottleDisabledByZeroLimit(t *testing.T) {
	for name, l := range limiters(t, Config{}) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 100; i++ {
				if err := l.AllowRefresh(context.Background(), "fp"); err != nil {
					t.Fatalf("disabled throttle rejected refresh: %v", err)
				}
			}
		})
	}
}

func TestRedisRefreshWindowExpires(t *testing.T) {
	l, mr := newRedisLimiter(t, Config{MaxRefreshPerMinute: 1})
	ctx := context.Background()

	if err := l.AllowRefresh(ctx, "fp"); err != nil {
		t.Fatalf("first refresh rejected: %v", err)
	}
	if err := l.AllowRefresh(ctx, "fp"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if ttl := mr.TTL("ar:fp"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected window ttl %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.AllowRefresh(ctx, "fp"); err != nil {
		t.Fatalf("refresh after window rejected: %v", err)
	}
}

func TestLoginFailuresLockOutUntilReset(t *testing.T) {
	for name, l := range limiters(t, Config{MaxLoginAttempts: 3, LoginCooldown: time.Minute}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				if err := l.CheckLogin(ctx, "alice", "10.0.0.1"); err != nil {
					t.Fatalf("attempt %d rejected: %v", i+1, err)
				}
				if err := l.RecordLoginFailure(ctx, "alice", "10.0.0.1"); err != nil {
					t.Fatalf("record failure %d: %v", i+1, err)
				}
			}
			if err := l.CheckLogin(ctx, "alice", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited, got %v", err)
			}
			if err := l.CheckLogin(ctx, "alice", "10.0.0.2"); !errors.Is(err, ErrRateLimited) {
				t.Fatalf("username budget must apply across IPs, got %v", err)
			}
			if err := l.CheckLogin(ctx, "bob", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
				t.Fatalf("IP budget must apply across usernames, got %v", err)
			}
			if err := l.CheckLogin(ctx, "bob", "10.0.0.9"); err != nil {
				t.Fatalf("unrelated login rejected: %v", err)
			}

			if err := l.ResetLogin(ctx, "alice", "10.0.0.1"); err != nil {
				t.Fatalf("reset failed: %v", err)
			}
			if err := l.CheckLogin(ctx, "alice", "10.0.0.1"); err != nil {
				t.Fatalf("login after reset rejected: %v", err)
			}
		})
	}
}

func TestRedisBackendFailureIsReported(t *testing.T) {
	l, mr := newRedisLimiter(t, Config{MaxRefreshPerMinute: 5, MaxLoginAttempts: 5})
	mr.Close()

	if err := l.AllowRefresh(context.Background(), "fp"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if err := l.CheckLogin(context.Background(), "alice", ""); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *Limiter
	ctx := context.Background()
	if l.AllowRefresh(ctx, "fp") != nil || l.CheckLogin(ctx, "a", "") != nil ||
		l.RecordLoginFailure(ctx, "a", "") != nil || l.ResetLogin(ctx, "a", "") != nil {
		t.Fatalf("nil limiter must be a no-op")
	}
}

func TestLocalLimiterBoundsTrackedKeys(t *testing.T) {
	l := NewLocal(Config{MaxRefreshPerMinute: 1}, 2)
	ctx := context.Background()
	for _, fp := range []string{"a", "b", "c"} {
		if err := l.AllowRefresh(ctx, fp); err != nil {
			t.Fatalf("first refresh for %s rejected: %v", fp, err)
		}
	}
	if n := l.backend.(*localBackend).buckets.Len(); n != 2 {
		t.Fatalf("expected 2 tracked keys, got %d", n)
	}
}
