// Package cache maps refresh tokens to short-lived access tokens so that most
// requests never reach the identity provider.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/authgate/idp"
	"github.com/MrEthical07/authgate/jwt"
	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxEntries bounds the cache size.
	DefaultMaxEntries = 5000
	// DefaultSkew is the minimum remaining lifetime of a token served from cache.
	DefaultSkew = 20 * time.Second
	// DefaultEvictFraction is the share of entries dropped when the bound is exceeded.
	DefaultEvictFraction = 0.1
)

// Config configures a Cache. Zero fields take the defaults.
type Config struct {
	MaxEntries    int
	Skew          time.Duration
	EvictFraction float64
	// DedupeRefresh collapses concurrent refreshes of the same refresh token
	// into one provider call.
	DedupeRefresh bool
}

// Refresher performs the provider refresh call on a cache miss.
type Refresher func(ctx context.Context, refreshToken string) (*idp.Result, error)

// Entry is a cached access token.
type Entry struct {
	AccessToken string
	IDToken     string
	ExpiresAt   time.Time
	LastUsedAt  time.Time
}

// Outcome is the result of GetOrRefresh.
type Outcome struct {
	AccessToken string
	IDToken     string
	ExpiresAt   time.Time
	// Refreshed is true when the provider was called during this GetOrRefresh.
	Refreshed bool
	// Result is the provider response; nil on a cache hit.
	Result *idp.Result
}

// Cache is a bounded refresh-token to access-token map. All state is guarded by
// one mutex; provider calls happen outside it.
type Cache struct {
	cfg Config

	mu      sync.Mutex
	entries *lru.LRU[string, *Entry]

	flights singleflight.Group
}

// New returns a Cache for cfg.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Skew <= 0 {
		cfg.Skew = DefaultSkew
	}
	if cfg.EvictFraction <= 0 || cfg.EvictFraction > 1 {
		cfg.EvictFraction = DefaultEvictFraction
	}
	// One slot of headroom so evictLocked runs before the LRU drops entries itself.
	entries, err := lru.NewLRU[string, *Entry](cfg.MaxEntries+1, nil)
	if err != nil {
		panic(err)
	}
	return &Cache{cfg: cfg, entries: entries}
}

// Config returns the effective configuration.
func (c *Cache) Config() Config {
	return c.cfg
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Peek returns a copy of the entry for refreshToken without touching its recency.
func (c *Cache) Peek(refreshToken string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Peek(refreshToken)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// GetOrRefresh returns an access token for refreshToken.
//
// A cached token is returned only when it stays valid for more than Skew past now.
// Otherwise refresher is called and the new token is stored with an expiry taken
// from its exp claim; a token without a readable exp is stored as already expired.
func (c *Cache) GetOrRefresh(ctx context.Context, refreshToken string, now time.Time, refresher Refresher) (Outcome, error) {
	if refreshToken == "" {
		return Outcome{}, errors.New("cache: empty refresh token")
	}
	if out, ok := c.lookup(refreshToken, now); ok {
		return out, nil
	}

	if !c.cfg.DedupeRefresh {
		res, err := refresher(ctx, refreshToken)
		if err != nil {
			return Outcome{}, err
		}
		return c.storeResult(refreshToken, res, now), nil
	}

	// Waiters share the call, so one caller's cancellation must not fail the rest.
	shared := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(refreshToken, func() (interface{}, error) {
		return refresher(shared, refreshToken)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return Outcome{}, r.Err
		}
		return c.storeResult(refreshToken, r.Val.(*idp.Result), now), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Store seeds the entry for refreshToken, used after login and when the provider
// rotates the refresh token.
func (c *Cache) Store(refreshToken, accessToken, idToken string, now time.Time) Entry {
	e := &Entry{
		AccessToken: accessToken,
		IDToken:     idToken,
		ExpiresAt:   jwt.DecodePayload(accessToken).ExpiresAt(),
		LastUsedAt:  now,
	}

	c.mu.Lock()
	c.entries.Add(refreshToken, e)
	c.evictLocked()
	c.mu.Unlock()

	return *e
}

func (c *Cache) lookup(refreshToken string, now time.Time) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Only a fresh entry counts as used; a stale one keeps its recency until
	// the refresh that replaces it succeeds.
	e, ok := c.entries.Peek(refreshToken)
	if !ok || !c.fresh(e, now) {
		return Outcome{}, false
	}
	c.entries.Get(refreshToken)
	e.LastUsedAt = now
	return Outcome{AccessToken: e.AccessToken, IDToken: e.IDToken, ExpiresAt: e.ExpiresAt}, true
}

func (c *Cache) fresh(e *Entry, now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return e.ExpiresAt.Sub(now) > c.cfg.Skew
}

func (c *Cache) storeResult(refreshToken string, res *idp.Result, now time.Time) Outcome {
	e := c.Store(refreshToken, res.Tokens.AccessToken, res.Tokens.IDToken, now)
	return Outcome{
		AccessToken: e.AccessToken,
		IDToken:     e.IDToken,
		ExpiresAt:   e.ExpiresAt,
		Refreshed:   true,
		Result:      res,
	}
}

// evictLocked drops the least recently used max(1, n*EvictFraction) entries once
// the bound is exceeded.
func (c *Cache) evictLocked() {
	n := c.entries.Len()
	if n <= c.cfg.MaxEntries {
		return
	}
	drop := int(float64(n) * c.cfg.EvictFraction)
	if drop < 1 {
		drop = 1
	}
	for i := 0; i < drop; i++ {
		if _, _, ok := c.entries.RemoveOldest(); !ok {
			return
		}
	}
}
