package internaldefs

import (
	"github.com/MrEthical07/authgate"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricAuthHeaderBearer, Name: "authgate_auth_header_bearer_total", Help: "Requests authenticated by an Authorization bearer header."},
	{ID: authgate.MetricAuthCacheHit, Name: "authgate_auth_cache_hit_total", Help: "Cookie requests served from the access-token cache."},
	{ID: authgate.MetricAuthRefreshed, Name: "authgate_auth_refreshed_total", Help: "Cookie requests that called the identity provider."},
	{ID: authgate.MetricAuthNoCredential, Name: "authgate_auth_no_credential_total", Help: "Requests without a usable credential."},
	{ID: authgate.MetricMalformedCookie, Name: "authgate_cookie_malformed_total", Help: "Refresh cookies no decoder accepted."},
	{ID: authgate.MetricExpiredCookie, Name: "authgate_cookie_expired_total", Help: "Refresh cookies past their refresh deadline."},
	{ID: authgate.MetricCookieOversized, Name: "authgate_cookie_oversized_total", Help: "Cookie writes above the size warning threshold."},
	{ID: authgate.MetricRefreshSuccess, Name: "authgate_refresh_success_total", Help: "Successful refresh calls."},
	{ID: authgate.MetricRefreshFailure, Name: "authgate_refresh_failure_total", Help: "Failed refresh calls."},
	{ID: authgate.MetricRefreshRateLimited, Name: "authgate_refresh_rate_limited_total", Help: "Refreshes rejected by the per-session throttle."},
	{ID: authgate.MetricVerifySuccess, Name: "authgate_verify_success_total", Help: "Access tokens that passed verification."},
	{ID: authgate.MetricVerifyFailure, Name: "authgate_verify_failure_total", Help: "Access tokens rejected for signature, expiry, or audience."},
	{ID: authgate.MetricKeySetUnavailable, Name: "authgate_key_set_unavailable_total", Help: "Verifications that could not fetch signing keys."},
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful logins."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed logins."},
	{ID: authgate.MetricLoginRateLimited, Name: "authgate_login_rate_limited_total", Help: "Logins rejected by the failed-login throttle."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Logouts."},
	{ID: authgate.MetricThrottleUnavailable, Name: "authgate_throttle_unavailable_total", Help: "Throttle backend failures."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricAuthenticateLatency, Name: "authgate_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// Names of values read outside the snapshot.
const (
	AuditDroppedName = "authgate_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
	CacheEntriesName = "authgate_cache_entries"
	CacheEntriesHelp = "Access tokens currently cached."
)

// HistogramBounds are the upper bounds of the engine's latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds in instrument-name-safe form.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// Source is what exporters read on every scrape. *authgate.Engine implements it.
type Source interface {
	MetricsSnapshot() authgate.MetricsSnapshot
	AuditDropped() uint64
	CacheLen() int
}
