package authgate

import "context"

type clientIPContextKey struct{}
type authResultContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it for
// per-IP login throttling and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithAuthResult attaches an authenticated request to ctx.
func WithAuthResult(ctx context.Context, result *AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, result)
}

// AuthResultFromContext returns the AuthResult attached by WithAuthResult.
func AuthResultFromContext(ctx context.Context) (*AuthResult, bool) {
	if ctx == nil {
		return nil, false
	}
	result, ok := ctx.Value(authResultContextKey{}).(*AuthResult)
	return result, ok && result != nil
}

// IdentityFromContext returns the identity of an authenticated request.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	result, ok := AuthResultFromContext(ctx)
	if !ok {
		return Identity{}, false
	}
	return result.Identity, true
}

// ClientIPFromContext returns the IP attached by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
