// Package session implements the refresh-session cookie: the RefreshSession model,
// its opaque cookie encoding, and the cookie attributes used when writing it.
//
// # Encodings
//
// Values are written as unpadded base64url JSON. Decoding walks an ordered list of
// decoders (current first, then the legacy percent-encoded standard base64 form), so
// cookies minted by older deployments keep working.
//
// # What this package must NOT do
//
//   - Perform network I/O or talk to the identity provider.
//   - Log or otherwise expose refresh tokens.
//   - Decide authorization; a decoded session is only a credential to present upstream.
package session
