package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// settings are the gateway's own knobs; authentication settings come from
// authgate.ConfigFromEnv.
type settings struct {
	ListenAddr     string
	UpstreamURL    *url.URL
	RedisAddr      string
	MetricsEnabled bool
	AuditLog       bool
	// TrustedProxyHops is how many proxies in front of the gateway append to
	// X-Forwarded-For. Zero keys clients on the remote address.
	TrustedProxyHops int
}

func settingsFromEnv() (settings, error) {
	s := settings{
		ListenAddr: envOr("LISTEN_ADDR", ":8080"),
		RedisAddr:  strings.TrimSpace(os.Getenv("REDIS_ADDR")),
	}

	raw := strings.TrimSpace(os.Getenv("UPSTREAM_URL"))
	if raw == "" {
		return settings{}, errors.New("UPSTREAM_URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return settings{}, fmt.Errorf("UPSTREAM_URL must be an absolute URL: %q", raw)
	}
	s.UpstreamURL = u

	if s.MetricsEnabled, err = envBool("METRICS_ENABLED"); err != nil {
		return settings{}, err
	}
	if s.AuditLog, err = envBool("AUDIT_LOG"); err != nil {
		return settings{}, err
	}
	if v := strings.TrimSpace(os.Getenv("TRUSTED_PROXY_HOPS")); v != "" {
		hops, err := strconv.Atoi(v)
		if err != nil || hops < 0 {
			return settings{}, fmt.Errorf("invalid TRUSTED_PROXY_HOPS: %q", v)
		}
		s.TrustedProxyHops = hops
	}
	return s, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
