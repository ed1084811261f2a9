package authgate

import (
	"errors"

	"github.com/MrEthical07/authgate/idp"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/session"
)

var (
	// ErrNoCredential is returned when the request carries neither a bearer header
	// nor a usable refresh cookie.
	ErrNoCredential = errors.New("no credential")
	// ErrMalformedCookie marks a refresh cookie that no decoder accepts. It is
	// treated as an absent cookie.
	ErrMalformedCookie = session.ErrMalformedCookie
	// ErrUpstreamUnavailable wraps transport failures and timeouts of the identity provider.
	ErrUpstreamUnavailable = idp.ErrUnavailable
	// ErrKeySetUnavailable is returned when the signing-key set cannot be fetched.
	ErrKeySetUnavailable = jwt.ErrKeySetUnavailable
	// ErrTokenInvalid is returned when signature, exp, or nbf checks fail.
	ErrTokenInvalid = jwt.ErrTokenInvalid
	// ErrAudienceMismatch is returned when a token is not issued to the configured client.
	ErrAudienceMismatch = jwt.ErrAudienceMismatch
	// ErrRefreshRateLimited is returned when a refresh session exceeds its refresh budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrLoginRateLimited is returned when a username or client IP has too many failed logins.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidLoginRequest is returned when username or password is missing.
	ErrInvalidLoginRequest = errors.New("invalid login request")
)

// UpstreamAuthError is a non-2xx response from the identity provider.
// Use errors.As to read its StatusCode.
type UpstreamAuthError = idp.StatusError

// IsVerificationFailure reports whether err means a token was rejected. The
// session cookie is cleared on these errors.
func IsVerificationFailure(err error) bool {
	return errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrAudienceMismatch)
}
