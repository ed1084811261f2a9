package jwt

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"golang.org/x/sync/singleflight"
)

type keySetKey struct {
	issuer   string
	clientID string
}

type keySetEntry struct {
	jwks      *keyfunc.JWKS
	fetchedAt time.Time
	// lastAttempt is the unix-nano time of the latest refetch attempt, successful or not.
	lastAttempt atomic.Int64
}

func newKeySetEntry(jwks *keyfunc.JWKS, now time.Time) *keySetEntry {
	e := &keySetEntry{jwks: jwks, fetchedAt: now}
	e.lastAttempt.Store(now.UnixNano())
	return e
}

// KeySets caches one remote signing-key set per (issuer, client id) configuration.
//
// Key sets are fetched on first use and never refreshed in the background. Entries
// are replaced atomically, so concurrent readers always see a complete key set.
type KeySets struct {
	mu      sync.RWMutex
	entries map[keySetKey]*keySetEntry
	fetches singleflight.Group
	now     func() time.Time
}

var defaultKeySets = NewKeySets()

// NewKeySets returns an empty key set cache.
func NewKeySets() *KeySets {
	return &KeySets{
		entries: make(map[keySetKey]*keySetEntry),
		now:     time.Now,
	}
}

// Invalidate drops the cached key set of one configuration. Other configurations
// are untouched.
func (k *KeySets) Invalidate(issuer, clientID string) {
	k.mu.Lock()
	delete(k.entries, keySetKey{issuer: issuer, clientID: clientID})
	k.mu.Unlock()
}

// Len returns the number of cached key sets.
func (k *KeySets) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

func (k *KeySets) lookup(key keySetKey) *keySetEntry {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.entries[key]
}

// get returns the cached key set for cfg, fetching it when missing. Concurrent
// callers for the same configuration share one fetch.
func (k *KeySets) get(ctx context.Context, cfg VerifierConfig) (*keySetEntry, error) {
	key := keySetKey{issuer: cfg.IssuerURL, clientID: cfg.ClientID}
	if entry := k.lookup(key); entry != nil {
		return entry, nil
	}
	entry, err := k.fetch(ctx, key, cfg)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if current := k.entries[key]; current != nil {
		return current, nil
	}
	k.entries[key] = entry
	return entry, nil
}

// refetch replaces the cached key set when the last attempt is older than the
// configured refresh rate limit. The stale set stays in place until a new one has
// been fetched; a failed refetch leaves it untouched. It reports whether a new key
// set is in place.
func (k *KeySets) refetch(ctx context.Context, cfg VerifierConfig, stale *keySetEntry) (*keySetEntry, bool) {
	key := keySetKey{issuer: cfg.IssuerURL, clientID: cfg.ClientID}
	current := k.lookup(key)
	if current != nil && current != stale {
		return current, true
	}
	if stale != nil {
		now := k.now()
		last := stale.lastAttempt.Load()
		if now.Sub(time.Unix(0, last)) < cfg.refreshRateLimit() {
			return stale, false
		}
		if !stale.lastAttempt.CompareAndSwap(last, now.UnixNano()) {
			// Another caller is refetching.
			return stale, false
		}
	}

	entry, err := k.fetch(ctx, key, cfg)
	if err != nil {
		return stale, false
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if current := k.entries[key]; current != nil && current != stale {
		return current, true
	}
	k.entries[key] = entry
	return entry, true
}

// fetch downloads a key set. It does not touch the cache; callers swap the
// result in under k.mu.
func (k *KeySets) fetch(ctx context.Context, key keySetKey, cfg VerifierConfig) (*keySetEntry, error) {
	ch := k.fetches.DoChan(key.issuer+"\x00"+key.clientID, func() (interface{}, error) {
		client := cfg.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: cfg.timeout()}
		}
		jwks, err := keyfunc.Get(CertsURL(cfg.IssuerURL), keyfunc.Options{
			Client:         client,
			RefreshTimeout: cfg.timeout(),
		})
		if err != nil {
			return nil, err
		}
		return jwks, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, res.Err)
		}
		return newKeySetEntry(res.Val.(*keyfunc.JWKS), k.now()), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, ctx.Err())
	}
}
