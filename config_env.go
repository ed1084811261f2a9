package authgate

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LookupFunc reads one configuration value, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ConfigFromEnv builds a Config from environment-style keys on top of
// DefaultConfig. For every key, KEY_FILE names a file whose trimmed contents
// take precedence over KEY. A nil lookup reads the process environment.
//
// The returned Config is not validated; Builder.Build does that.
func ConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := envReader{lookup: lookup}
	cfg := defaultConfig()

	cfg.Provider.BaseURL = env.getString("AUTH_API_BASE_URL", cfg.Provider.BaseURL)
	cfg.Provider.Timeout = env.getDuration("AUTH_API_TIMEOUT", cfg.Provider.Timeout)

	cfg.Verifier.BaseURL = env.getString("KEYCLOAK_URL", cfg.Verifier.BaseURL)
	cfg.Verifier.Realm = env.getString("KEYCLOAK_REALM", cfg.Verifier.Realm)
	cfg.Verifier.ClientID = env.getString("KEYCLOAK_CLIENT_ID", cfg.Verifier.ClientID)
	cfg.Verifier.Timeout = env.getDuration("KEYCLOAK_TIMEOUT", cfg.Verifier.Timeout)

	cfg.Cache.MaxEntries = env.getInt("AUTH_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.Skew = env.getDuration("AUTH_CACHE_SKEW", cfg.Cache.Skew)
	cfg.Cache.DedupeRefresh = env.getBool("AUTH_CACHE_DEDUPE_REFRESH", cfg.Cache.DedupeRefresh)

	cfg.Cookie.Name = env.getString("AUTH_COOKIE_NAME", cfg.Cookie.Name)
	cfg.Cookie.TrustForwardedProto = env.getBool("AUTH_TRUST_FORWARDED_PROTO", cfg.Cookie.TrustForwardedProto)

	cfg.Routes.APIPrefix = env.getString("AUTH_API_PREFIX", cfg.Routes.APIPrefix)
	cfg.Routes.LoginPath = env.getString("AUTH_LOGIN_PATH", cfg.Routes.LoginPath)

	if raw := env.getString("AUTH_AUDIENCES", ""); raw != "" {
		cfg.Audiences = splitList(raw)
	}

	cfg.Security.MaxRefreshPerMinute = env.getInt("AUTH_REFRESH_MAX_PER_MINUTE", cfg.Security.MaxRefreshPerMinute)
	cfg.Security.MaxLoginAttempts = env.getInt("AUTH_LOGIN_MAX_ATTEMPTS", cfg.Security.MaxLoginAttempts)
	cfg.Security.LoginCooldown = env.getDuration("AUTH_LOGIN_COOLDOWN", cfg.Security.LoginCooldown)

	if env.err != nil {
		return Config{}, env.err
	}
	return cfg, nil
}

// envReader records the first parse error so ConfigFromEnv reads linearly.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) raw(key string) (string, bool) {
	if path, ok := e.lookup(key + "_FILE"); ok && strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(strings.TrimSpace(path))
		if err != nil {
			e.fail(fmt.Errorf("read %s_FILE: %w", key, err))
			return "", false
		}
		return strings.TrimSpace(string(content)), true
	}
	value, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (e *envReader) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *envReader) getString(key, fallback string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return fallback
}

func (e *envReader) getInt(key string, fallback int) int {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}

func (e *envReader) getBool(key string, fallback bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return b
}

// getDuration accepts Go duration strings and bare integers as milliseconds.
func (e *envReader) getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s format: %w", key, err))
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
