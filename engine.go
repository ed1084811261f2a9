package authgate

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authgate/cache"
	"github.com/MrEthical07/authgate/idp"
	"github.com/MrEthical07/authgate/internal/audit"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/session"
	"go.uber.org/zap"
)

// Engine authenticates requests. Build one with [Builder].
//
// Engine is safe for concurrent use. Its only shared mutable state is the
// access-token cache, which serializes itself.
type Engine struct {
	config   Config
	provider *idp.Client
	verifier *jwt.Verifier
	cache    *cache.Cache
	codec    *session.Codec
	cookie   session.CookieOptions
	limiter  *rate.Limiter
	// redisThrottle is set when limiter budgets are shared through Redis.
	redisThrottle bool
	audit         *audit.Dispatcher
	metrics       *Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditDroppedByType breaks AuditDropped down by event type.
func (e *Engine) AuditDroppedByType() map[string]uint64 {
	if e == nil || e.audit == nil {
		return nil
	}
	return e.audit.DroppedByType()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// VerifierEnabled reports whether access tokens are verified against the
// identity provider's signing keys.
func (e *Engine) VerifierEnabled() bool {
	return e != nil && e.verifier != nil
}

// CacheLen returns the number of cached access tokens.
func (e *Engine) CacheLen() int {
	if e == nil {
		return 0
	}
	return e.cache.Len()
}

// Authenticate resolves the credential of r.
//
// An Authorization bearer header short-circuits the cookie path and is used as-is,
// verified when a verifier is configured. Otherwise the refresh cookie is
// exchanged for an access token through the cache. Cookies are re-written after a
// refresh and cleared when expired or when verification rejects the token.
//
// Authenticate writes cookie headers on w but never a response body.
//
// Errors: ErrNoCredential (no cookie, malformed cookie, expired cookie),
// ErrRefreshRateLimited, ErrUpstreamUnavailable, *UpstreamAuthError,
// ErrTokenInvalid, ErrAudienceMismatch, ErrKeySetUnavailable.
func (e *Engine) Authenticate(w http.ResponseWriter, r *http.Request) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}()

	if token, ok := BearerFromHeader(r); ok {
		return e.authenticateHeader(r.Context(), r, token)
	}
	return e.authenticateCookie(r.Context(), w, r)
}

func (e *Engine) authenticateHeader(ctx context.Context, r *http.Request, token string) (*AuthResult, error) {
	e.metrics.Inc(MetricAuthHeaderBearer)
	result := &AuthResult{
		AccessToken: token,
		Bearer:      token,
		Source:      SourceHeader,
	}

	if e.verifier == nil {
		claims := jwt.DecodePayload(token)
		result.Identity = identityFromUnverified(claims)
		result.ExpiresAt = claims.ExpiresAt()
		return result, nil
	}

	claims, err := e.verify(ctx, r, token, "")
	if err != nil {
		return nil, err
	}
	result.Claims = claims
	result.Identity = identityFromVerified(claims)
	result.ExpiresAt = claims.ExpiresAt
	return result, nil
}

func (e *Engine) authenticateCookie(ctx context.Context, w http.ResponseWriter, r *http.Request) (*AuthResult, error) {
	now := e.now()

	current := session.ReadCookie(r, e.codec, e.cookie)
	if current == nil {
		if session.HasCookie(r, e.cookie) {
			e.metrics.Inc(MetricMalformedCookie)
			e.logger.Debug("refresh cookie not decodable", zap.String("path", r.URL.Path))
		}
		e.metrics.Inc(MetricAuthNoCredential)
		return nil, ErrNoCredential
	}

	fp := fingerprint(current.RefreshToken)
	if current.Expired(now) {
		session.ClearCookie(w, r, e.cookie)
		e.metrics.Inc(MetricExpiredCookie)
		e.metrics.Inc(MetricAuthNoCredential)
		e.emitAudit(ctx, auditRecord{eventType: auditEventCookieExpired, session: fp, path: r.URL.Path, err: ErrNoCredential})
		return nil, ErrNoCredential
	}

	out, err := e.cache.GetOrRefresh(ctx, current.RefreshToken, now, e.refresher(fp))
	if err != nil {
		held, ok := e.unexpiredWhenThrottled(current.RefreshToken, fp, now, err)
		if !ok {
			return nil, e.refreshFailed(ctx, w, r, fp, err)
		}
		out = held
	}

	result := &AuthResult{
		AccessToken: out.AccessToken,
		IDToken:     out.IDToken,
		ExpiresAt:   out.ExpiresAt,
		Source:      SourceCache,
	}

	if out.Refreshed {
		result.Source = SourceRefresh
		result.Identity = out.Result.Identity
		e.metrics.Inc(MetricAuthRefreshed)
		e.metrics.Inc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditRecord{eventType: auditEventRefreshSuccess, userID: out.Result.Identity.ID, session: fp, path: r.URL.Path})
		e.persistRefresh(w, r, current, out.Result, now)
	} else {
		e.metrics.Inc(MetricAuthCacheHit)
	}

	if e.verifier != nil {
		claims, err := e.verify(ctx, r, out.AccessToken, fp)
		if err != nil {
			if IsVerificationFailure(err) {
				session.ClearCookie(w, r, e.cookie)
			}
			return nil, err
		}
		result.Claims = claims
		if !out.Refreshed {
			result.Identity = identityFromVerified(claims)
		}
	} else if !out.Refreshed {
		result.Identity = identityFromUnverified(jwt.DecodePayload(out.AccessToken))
	}

	result.Bearer = SelectBearer(e.config.Audiences, result.AccessToken, result.IDToken)
	return result, nil
}

// refresher runs the refresh throttle before calling the identity provider.
func (e *Engine) refresher(fp string) cache.Refresher {
	return func(ctx context.Context, refreshToken string) (*idp.Result, error) {
		if err := e.limiter.AllowRefresh(ctx, fp); err != nil {
			if err := e.throttleError("refresh", err, ErrRefreshRateLimited); err != nil {
				return nil, err
			}
		}
		return e.provider.Refresh(ctx, refreshToken)
	}
}

// unexpiredWhenThrottled returns the cached token of a throttled session when it
// is inside the skew window but not yet expired.
func (e *Engine) unexpiredWhenThrottled(refreshToken, fp string, now time.Time, err error) (cache.Outcome, bool) {
	if !errors.Is(err, ErrRefreshRateLimited) {
		return cache.Outcome{}, false
	}
	entry, ok := e.cache.Peek(refreshToken)
	if !ok || entry.ExpiresAt.IsZero() || !now.Before(entry.ExpiresAt) {
		return cache.Outcome{}, false
	}
	e.metrics.Inc(MetricRefreshRateLimited)
	e.logger.Debug("refresh rate limited, serving unexpired cached token", sessionField(fp))
	return cache.Outcome{AccessToken: entry.AccessToken, IDToken: entry.IDToken, ExpiresAt: entry.ExpiresAt}, true
}

func (e *Engine) refreshFailed(ctx context.Context, w http.ResponseWriter, r *http.Request, fp string, err error) error {
	var upstream *UpstreamAuthError
	switch {
	case errors.Is(err, ErrRefreshRateLimited):
		e.metrics.Inc(MetricRefreshRateLimited)
		e.emitAudit(ctx, auditRecord{eventType: auditEventRefreshRateLimited, session: fp, path: r.URL.Path, err: err})
		e.logger.Warn("refresh rate limited", sessionField(fp))
		return err
	case errors.As(err, &upstream) && upstream.ClientError():
		// The provider rejected the refresh token itself; drop the cookie so the
		// browser stops presenting it.
		session.ClearCookie(w, r, e.cookie)
		e.logger.Info("refresh token rejected by identity provider",
			sessionField(fp), zap.Int("status", upstream.StatusCode))
	default:
		e.logger.Warn("refresh failed", sessionField(fp), zap.Error(err))
	}

	e.metrics.Inc(MetricRefreshFailure)
	e.emitAudit(ctx, auditRecord{eventType: auditEventRefreshFailure, session: fp, path: r.URL.Path, err: err})

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrUpstreamUnavailable, err)
	}
	return err
}

// persistRefresh re-writes the cookie with the rotated token and the extended
// deadline, and seeds the cache under a rotated token.
func (e *Engine) persistRefresh(w http.ResponseWriter, r *http.Request, current *session.RefreshSession, res *idp.Result, now time.Time) {
	next := *current
	if res.Refresh.Rotated() {
		next.RefreshToken = res.Refresh.Token.Value()
		e.cache.Store(next.RefreshToken, res.Tokens.AccessToken, res.Tokens.IDToken, now)
	}
	if exp := res.Refresh.ExpiresAt(now); !exp.IsZero() {
		next.RefreshExpiresAt = exp
	}
	e.writeSessionCookie(w, r, next)
}

func (e *Engine) writeSessionCookie(w http.ResponseWriter, r *http.Request, s session.RefreshSession) {
	written, err := session.WriteCookie(w, r, e.codec, s, e.cookie)
	if err != nil {
		e.logger.Error("refresh cookie not written", sessionField(fingerprint(s.RefreshToken)), zap.Error(err))
		return
	}
	if written.Oversized {
		e.metrics.Inc(MetricCookieOversized)
		e.logger.Warn("refresh cookie exceeds size threshold",
			zap.Int("size", written.Size), zap.Int("threshold", e.cookie.MaxSize))
	}
}

func (e *Engine) verify(ctx context.Context, r *http.Request, token, fp string) (*jwt.VerifiedClaims, error) {
	claims, err := e.verifier.Verify(ctx, token)
	if err == nil {
		e.metrics.Inc(MetricVerifySuccess)
		return claims, nil
	}

	if errors.Is(err, ErrKeySetUnavailable) {
		e.metrics.Inc(MetricKeySetUnavailable)
		e.logger.Warn("signing key set unavailable", zap.Error(err))
	} else {
		e.metrics.Inc(MetricVerifyFailure)
		e.logger.Info("token verification failed", sessionField(fp), zap.Error(err))
	}
	e.emitAudit(ctx, auditRecord{
		eventType: auditEventVerifyFailure,
		userID:    jwt.DecodePayload(token).Subject(),
		session:   fp,
		path:      r.URL.Path,
		err:       err,
	})
	return nil, err
}

// throttleError maps a limiter error to limited, or to nil when the backend
// failed and the engine fails open.
func (e *Engine) throttleError(op string, err, limited error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return limited
	}
	e.metrics.Inc(MetricThrottleUnavailable)
	e.logger.Warn("throttle backend unavailable", zap.String("op", op), zap.Error(err))
	if e.config.Security.ThrottleFailClosed {
		return limited
	}
	return nil
}

func identityFromVerified(c *jwt.VerifiedClaims) Identity {
	return Identity{
		ID:        c.Subject,
		Username:  c.PreferredUsername,
		Email:     c.Email,
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
	}
}

// identityFromUnverified is display data only.
func identityFromUnverified(c *jwt.UnverifiedClaims) Identity {
	return Identity{
		ID:        c.Subject(),
		Username:  c.String("preferred_username"),
		Email:     c.String("email"),
		FirstName: c.String("given_name"),
		LastName:  c.String("family_name"),
	}
}
