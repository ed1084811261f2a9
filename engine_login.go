package authgate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/session"
	"go.uber.org/zap"
)

// Login exchanges credentials with the identity provider, writes the refresh
// cookie on w, and seeds the access-token cache.
//
// Failed logins count against the per-username and per-IP budgets (client IP from
// WithClientIP); a successful login resets both. Provider rejections are returned
// as *UpstreamAuthError with the provider's status.
func (e *Engine) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, username, password string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidLoginRequest
	}
	ip := ClientIPFromContext(ctx)
	rec := auditRecord{path: r.URL.Path, metadata: map[string]string{"username": username}}

	if err := e.limiter.CheckLogin(ctx, username, ip); err != nil {
		if err := e.throttleError("login", err, ErrLoginRateLimited); err != nil {
			e.metrics.Inc(MetricLoginRateLimited)
			rec.eventType, rec.err = auditEventLoginRateLimited, err
			e.emitAudit(ctx, rec)
			return nil, err
		}
	}

	res, err := e.provider.Login(ctx, username, password)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		rec.eventType, rec.err = auditEventLoginFailure, err

		var upstream *UpstreamAuthError
		if errors.As(err, &upstream) && upstream.ClientError() {
			if lerr := e.limiter.RecordLoginFailure(ctx, username, ip); lerr != nil {
				_ = e.throttleError("login", lerr, ErrLoginRateLimited)
			}
		} else {
			e.logger.Warn("login failed", zap.Error(err))
		}
		e.emitAudit(ctx, rec)
		return nil, err
	}

	if err := e.limiter.ResetLogin(ctx, username, ip); err != nil {
		_ = e.throttleError("login", err, ErrLoginRateLimited)
	}

	now := e.now()
	if res.Refresh.Rotated() {
		refreshToken := res.Refresh.Token.Value()
		e.cache.Store(refreshToken, res.Tokens.AccessToken, res.Tokens.IDToken, now)
		e.writeSessionCookie(w, r, session.RefreshSession{
			RefreshToken:     refreshToken,
			RefreshExpiresAt: res.Refresh.ExpiresAt(now),
		})
	} else {
		e.logger.Warn("identity provider returned no refresh token; no session cookie written",
			zap.String("user_id", res.Identity.ID))
	}

	e.metrics.Inc(MetricLoginSuccess)
	rec.eventType, rec.userID = auditEventLoginSuccess, res.Identity.ID
	e.emitAudit(ctx, rec)

	return &LoginResult{
		Identity:    res.Identity,
		AccessToken: res.Tokens.AccessToken,
		IDToken:     res.Tokens.IDToken,
		Bearer:      SelectBearer(e.config.Audiences, res.Tokens.AccessToken, res.Tokens.IDToken),
		ExpiresAt:   jwt.DecodePayload(res.Tokens.AccessToken).ExpiresAt(),
	}, nil
}

// Logout clears the refresh cookie. The cached access token is left to expire;
// it is unreachable without the cookie.
func (e *Engine) Logout(w http.ResponseWriter, r *http.Request) {
	if e == nil {
		return
	}
	rec := auditRecord{eventType: auditEventLogout, path: r.URL.Path}
	if current := session.ReadCookie(r, e.codec, e.cookie); current != nil {
		rec.session = fingerprint(current.RefreshToken)
	}
	session.ClearCookie(w, r, e.cookie)
	e.metrics.Inc(MetricLogout)
	e.emitAudit(r.Context(), rec)
}
