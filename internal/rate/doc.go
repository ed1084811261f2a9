// Package rate throttles provider refresh calls and failed logins.
//
// # Backends
//
//   - Redis: fixed-window counters, INCR + conditional EXPIRE on first hit. Shared
//     across gateway replicas.
//   - Local: per-key token buckets (golang.org/x/time/rate) held in a bounded LRU.
//     Used when no Redis client is configured.
//
// Key prefixes:
//   - al:  failed logins per username
//   - ali: failed logins per client IP
//   - ar:  refresh calls per refresh-token fingerprint
//
// # What this package must NOT do
//
//   - See raw refresh tokens. Callers pass a fingerprint.
//   - Decide what happens when a backend fails; errors wrap ErrBackendUnavailable
//     and the caller chooses to fail open or closed.
package rate
