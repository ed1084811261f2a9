// Package prometheus renders authgate engine metrics in Prometheus text
// exposition format.
//
// Mount [Exporter.Handler] on a scrape path. Counters are named
// authgate_*_total, the Authenticate latency histogram is
// authgate_authenticate_latency_seconds, and authgate_cache_entries reports the
// access-token cache size.
//
// The package writes the text format directly and does not touch any global
// registry.
package prometheus
