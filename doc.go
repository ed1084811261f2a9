// Package authgate authenticates inbound HTTP requests for a gateway that sits
// in front of protected APIs and pages.
//
// A browser holds a long-lived refresh token in a cookie. authgate turns it into a
// short-lived access token through the identity provider, caches the result, and
// optionally verifies it against the provider's signing keys. Machine clients
// that already carry an Authorization header bypass the cookie path entirely.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface: [Engine], [Builder], [Config], and the result
// types. The cookie codec lives in session, token parsing and verification in jwt,
// the provider client in idp, the access-token cache in cache. Throttling and audit
// dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Make authorization decisions from unverified claims. Unverified data only
//     feeds display identity and bearer selection.
//   - Log or return refresh tokens.
//   - Write HTTP response bodies. Denial rendering belongs to middleware.
//   - Start background goroutines other than the optional audit dispatcher.
package authgate
