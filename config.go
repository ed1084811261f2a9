package authgate

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authgate/cache"
	"github.com/MrEthical07/authgate/idp"
	"github.com/MrEthical07/authgate/session"
)

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Provider ProviderConfig
	Verifier VerifierConfig
	Cache    CacheConfig
	Cookie   CookieConfig
	Routes   RouteConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	// Audiences lists downstream audiences in preference order. The bearer
	// forwarded downstream is the first token declaring one of them.
	Audiences []string
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig locates the identity provider's user API.
type ProviderConfig struct {
	BaseURL string
	Timeout time.Duration
}

// VerifierConfig enables remote signing-key verification. Verification is
// disabled unless BaseURL, Realm, and ClientID are all set.
type VerifierConfig struct {
	BaseURL  string
	Realm    string
	ClientID string
	Timeout  time.Duration
	// KeyRefreshRateLimit is the minimum age of a key set before an unknown kid
	// may trigger a refetch.
	KeyRefreshRateLimit time.Duration
	Leeway              time.Duration
}

// Enabled reports whether all three verifier settings are present.
func (c VerifierConfig) Enabled() bool {
	return c.BaseURL != "" && c.Realm != "" && c.ClientID != ""
}

// partial reports whether some but not all verifier settings are present.
func (c VerifierConfig) partial() bool {
	return !c.Enabled() && (c.BaseURL != "" || c.Realm != "" || c.ClientID != "")
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig bounds the access-token cache.
type CacheConfig struct {
	MaxEntries int
	// Skew is the minimum remaining lifetime of a cached token; must be > 0.
	Skew          time.Duration
	EvictFraction float64
	DedupeRefresh bool
}

/*
====================================
COOKIE / ROUTE CONFIG
====================================
*/

// CookieConfig describes the refresh-session cookie.
type CookieConfig struct {
	Name                string
	TrustForwardedProto bool
	// MaxSize is the serialized size above which a warning is logged.
	MaxSize int
}

// RouteConfig classifies paths for denial rendering.
type RouteConfig struct {
	// APIPrefix marks API-style routes, which get a 401 JSON body.
	APIPrefix string
	// LoginPath receives page-style redirects.
	LoginPath string
	// ReturnToParam is the query parameter carrying the original path.
	ReturnToParam string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by authgate APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	// MaxRefreshPerMinute caps provider refresh calls per refresh session. Zero
	// (the default) disables. A throttled session keeps using its cached token
	// until that token expires.
	MaxRefreshPerMinute int
	// MaxLoginAttempts caps failed logins per username and per client IP. Zero disables.
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	// ThrottleFailClosed rejects requests when the throttle backend is unreachable.
	ThrottleFailClosed bool
	// LocalThrottleKeys bounds the in-process throttle when no Redis client is set.
	LocalThrottleKeys int
}

// AuditConfig defines a public type used by authgate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authgate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Timeout: idp.DefaultTimeout,
		},
		Verifier: VerifierConfig{
			Timeout:             5 * time.Second,
			KeyRefreshRateLimit: time.Minute,
		},
		Cache: CacheConfig{
			MaxEntries:    cache.DefaultMaxEntries,
			Skew:          cache.DefaultSkew,
			EvictFraction: cache.DefaultEvictFraction,
		},
		Cookie: CookieConfig{
			Name:                session.DefaultCookieName,
			TrustForwardedProto: true,
			MaxSize:             session.DefaultMaxCookieSize,
		},
		Routes: RouteConfig{
			APIPrefix:     "/api/",
			LoginPath:     "/login",
			ReturnToParam: "returnTo",
		},
		Security: SecurityConfig{
			MaxRefreshPerMinute: 0,
			MaxLoginAttempts:    10,
			LoginCooldown:       15 * time.Minute,
			LocalThrottleKeys:   10000,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the configuration every Builder starts from. Only
// Provider.BaseURL has no usable default.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Audiences != nil {
		out.Audiences = append([]string(nil), cfg.Audiences...)
	}
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first invalid setting. A partially configured verifier is
// not an error; it leaves verification disabled.
func (c *Config) Validate() error {
	// Provider
	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		return errors.New("Provider BaseURL is required")
	}
	if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Provider BaseURL must be an absolute URL")
	}
	if c.Provider.Timeout <= 0 {
		return errors.New("Provider Timeout must be > 0")
	}

	// Verifier
	if c.Verifier.Enabled() {
		if u, err := url.Parse(c.Verifier.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("Verifier BaseURL must be an absolute URL")
		}
		if c.Verifier.Timeout <= 0 {
			return errors.New("Verifier Timeout must be > 0")
		}
		if c.Verifier.KeyRefreshRateLimit < 0 {
			return errors.New("Verifier KeyRefreshRateLimit must be >= 0")
		}
		if c.Verifier.Leeway < 0 {
			return errors.New("Verifier Leeway must be >= 0")
		}
	}

	// Cache
	if c.Cache.MaxEntries <= 0 {
		return errors.New("Cache MaxEntries must be > 0")
	}
	if c.Cache.Skew <= 0 {
		return errors.New("Cache Skew must be > 0")
	}
	if c.Cache.EvictFraction <= 0 || c.Cache.EvictFraction > 1 {
		return errors.New("Cache EvictFraction must be in (0, 1]")
	}

	// Cookie
	if !validCookieName(c.Cookie.Name) {
		return errors.New("Cookie Name is invalid")
	}
	if c.Cookie.MaxSize <= 0 {
		return errors.New("Cookie MaxSize must be > 0")
	}

	// Routes
	if !strings.HasPrefix(c.Routes.APIPrefix, "/") {
		return errors.New("Routes APIPrefix must start with /")
	}
	if !strings.HasPrefix(c.Routes.LoginPath, "/") || strings.HasPrefix(c.Routes.LoginPath, "//") {
		return errors.New("Routes LoginPath must be a local path")
	}
	if c.Routes.ReturnToParam == "" {
		return errors.New("Routes ReturnToParam is required")
	}

	for _, aud := range c.Audiences {
		if strings.TrimSpace(aud) == "" {
			return errors.New("Audiences must not contain empty values")
		}
	}

	// Security
	if c.Security.MaxRefreshPerMinute < 0 {
		return errors.New("Security MaxRefreshPerMinute must be >= 0")
	}
	if c.Security.MaxLoginAttempts < 0 {
		return errors.New("Security MaxLoginAttempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldown <= 0 {
		return errors.New("Security LoginCooldown must be > 0 when MaxLoginAttempts is set")
	}
	if c.Security.LocalThrottleKeys <= 0 {
		return errors.New("Security LocalThrottleKeys must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= 0x20 || r >= 0x7f || strings.ContainsRune("()<>@,;:\\\"/[]?={}", r) {
			return false
		}
	}
	return true
}
