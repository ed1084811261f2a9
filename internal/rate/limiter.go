package rate

import (
	"context"
	"time"
)

const refreshWindow = time.Minute

// Config holds limiter tuning parameters. A zero limit disables that throttle.
type Config struct {
	MaxRefreshPerMinute int
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
}

// backend is a per-key budget of limit hits per window.
type backend interface {
	// hit consumes one unit and reports whether the key was still within budget.
	hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// exhausted reports whether the key has no budget left, without consuming.
	exhausted(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	reset(ctx context.Context, keys ...string) error
}

// Limiter enforces the refresh and failed-login budgets.
type Limiter struct {
	backend backend
	config  Config
}

func newLimiter(b backend, cfg Config) *Limiter {
	if cfg.LoginCooldown <= 0 {
		cfg.LoginCooldown = 15 * time.Minute
	}
	return &Limiter{backend: b, config: cfg}
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// AllowRefresh counts one refresh for the session fingerprint and returns
// ErrRateLimited once the per-minute budget is used up.
func (l *Limiter) AllowRefresh(ctx context.Context, fingerprint string) error {
	if l == nil || l.config.MaxRefreshPerMinute <= 0 {
		return nil
	}
	ok, err := l.backend.hit(ctx, refreshKey(fingerprint), l.config.MaxRefreshPerMinute, refreshWindow)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

// CheckLogin returns ErrRateLimited when the username or IP has reached the
// failed-login budget. It does not count an attempt.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range loginKeys(username, ip) {
		exhausted, err := l.backend.exhausted(ctx, key, l.config.MaxLoginAttempts, l.config.LoginCooldown)
		if err != nil {
			return err
		}
		if exhausted {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordLoginFailure counts one failed login for the username and IP.
func (l *Limiter) RecordLoginFailure(ctx context.Context, username, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	limited := false
	for _, key := range loginKeys(username, ip) {
		ok, err := l.backend.hit(ctx, key, l.config.MaxLoginAttempts, l.config.LoginCooldown)
		if err != nil {
			return err
		}
		if !ok {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the failed-login counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, username, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	return l.backend.reset(ctx, loginKeys(username, ip)...)
}

func refreshKey(fingerprint string) string {
	return "ar:" + fingerprint
}

func loginKeys(username, ip string) []string {
	keys := []string{"al:" + username}
	if ip != "" {
		keys = append(keys, "ali:"+ip)
	}
	return keys
}
