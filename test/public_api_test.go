package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/middleware"
	"github.com/labstack/echo/v4"
)

// Compile-time guard of the public API consumers build against.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = authgate.New
	_ = authgate.DefaultConfig
	_ = authgate.ConfigFromEnv

	var _ *authgate.Engine
	var _ authgate.Config
	var _ authgate.AuthResult
	var _ authgate.LoginResult
	var _ authgate.Identity
	var _ authgate.AuditSink
	var _ authgate.SecurityReport
	var _ *jwt.VerifiedClaims

	var _ error = authgate.ErrNoCredential
	var _ error = authgate.ErrTokenInvalid
	var _ error = authgate.ErrAudienceMismatch
	var _ error = authgate.ErrKeySetUnavailable
	var _ error = authgate.ErrUpstreamUnavailable
	var _ error = authgate.ErrRefreshRateLimited
	var _ error = authgate.ErrLoginRateLimited
	var _ error = &authgate.UpstreamAuthError{}

	var _ func(*authgate.Engine) func(http.Handler) http.Handler = middleware.Guard
	var _ func(*authgate.Engine) func(http.Handler) http.Handler = middleware.Optional
	var _ func(*authgate.Engine) echo.MiddlewareFunc = middleware.EchoGuard
	var _ func(*authgate.Engine) http.Handler = middleware.LoginHandler
	var _ func(in, out *http.Request) bool = middleware.ForwardBearer
	var _ func(http.Handler) http.Handler = middleware.ClientIP
	var _ func(int) func(http.Handler) http.Handler = middleware.ClientIPFromForwarded
	var _ func(context.Context) string = authgate.ClientIPFromContext
	var _ func(*authgate.Engine) map[string]uint64 = (*authgate.Engine).AuditDroppedByType

	var _ func(*authgate.Engine, http.ResponseWriter, *http.Request) (*authgate.AuthResult, error) = (*authgate.Engine).Authenticate
	var _ func(*authgate.Engine, context.Context, http.ResponseWriter, *http.Request, string, string) (*authgate.LoginResult, error) = (*authgate.Engine).Login
	var _ func(*authgate.Engine, http.ResponseWriter, *http.Request) = (*authgate.Engine).Logout
	var _ func(*jwt.Verifier, context.Context, string) (*jwt.VerifiedClaims, error) = (*jwt.Verifier).Verify
}
