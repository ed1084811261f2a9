// Package jwt reads and verifies bearer tokens issued by the remote identity provider.
//
// # Two kinds of claims
//
//   - [UnverifiedClaims] come from [DecodePayload]: structural base64url/JSON decoding
//     with no cryptographic check. They are hints for cache expiry, logging, and
//     audience-based token selection only.
//   - [VerifiedClaims] come from [Verifier.Verify] after signature, exp, nbf, and
//     audience checks against the realm's remote key set.
//
// The two types share no conversion path. Code that needs an
// authorization decision must hold a *VerifiedClaims.
//
// # Key sets
//
// Key sets are fetched lazily from <issuer>/protocol/openid-connect/certs and cached
// per (issuer, client id) in [KeySets]. There is no background refresh goroutine; an
// unknown kid triggers at most one rate-limited refetch from the request path.
package jwt
