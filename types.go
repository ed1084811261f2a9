package authgate

import (
	"time"

	"github.com/MrEthical07/authgate/idp"
	"github.com/MrEthical07/authgate/jwt"
)

// Identity is the authenticated user for one request.
type Identity = idp.Identity

// CredentialSource names where a request's access token came from.
type CredentialSource int

const (
	// SourceHeader means the caller sent an Authorization bearer header.
	SourceHeader CredentialSource = iota + 1
	// SourceCache means the refresh cookie hit the access-token cache.
	SourceCache
	// SourceRefresh means the identity provider was called during this request.
	SourceRefresh
)

func (s CredentialSource) String() string {
	switch s {
	case SourceHeader:
		return "header"
	case SourceCache:
		return "cache"
	case SourceRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// AuthResult is a successfully authenticated request.
//
// Claims is non-nil only when a verifier is configured; it is the only value
// that may back authorization decisions.
type AuthResult struct {
	Identity    Identity
	AccessToken string
	IDToken     string
	// Bearer is the token to forward to downstream APIs.
	Bearer    string
	ExpiresAt time.Time
	Source    CredentialSource
	Claims    *jwt.VerifiedClaims
}

// Verified reports whether the access token passed signature and audience checks.
func (r *AuthResult) Verified() bool {
	return r != nil && r.Claims != nil
}

// LoginResult is a successful Engine.Login. It never carries the refresh token,
// which only travels in the session cookie.
type LoginResult struct {
	Identity    Identity
	AccessToken string
	IDToken     string
	Bearer      string
	ExpiresAt   time.Time
}
