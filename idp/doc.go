// Package idp is the HTTP client for the identity provider's user API.
//
// It exchanges credentials (POST /user/login) and refresh tokens
// (POST /user/refresh) for a token bundle and the user's identity. The refresh
// credential returned by the provider is only ever exposed as a [Secret], so it
// cannot end up in logs through fmt or zap.
//
// # Errors
//
//   - Non-2xx responses return *[StatusError] carrying the provider's status.
//   - Transport failures, timeouts, unreadable 2xx bodies, and a missing access
//     token wrap [ErrUnavailable].
//
// The client never writes HTTP responses and never retries.
package idp
