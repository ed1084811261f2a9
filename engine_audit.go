package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventLogout             = "logout"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshFailure     = "refresh_failure"
	auditEventRefreshRateLimited = "refresh_rate_limited"
	auditEventVerifyFailure      = "verification_failure"
	auditEventCookieExpired      = "cookie_expired"
)

// AuditErrorCode is the machine-readable Error field of an AuditEvent.
type AuditErrorCode string

const (
	auditErrNoCredential        AuditErrorCode = "no_credential"
	auditErrTokenInvalid        AuditErrorCode = "token_invalid"
	auditErrAudienceMismatch    AuditErrorCode = "audience_mismatch"
	auditErrKeySetUnavailable   AuditErrorCode = "key_set_unavailable"
	auditErrUpstreamRejected    AuditErrorCode = "upstream_rejected"
	auditErrUpstreamUnavailable AuditErrorCode = "upstream_unavailable"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	var upstream *UpstreamAuthError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCredential):
		return auditErrNoCredential
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrAudienceMismatch):
		return auditErrAudienceMismatch
	case errors.Is(err, ErrKeySetUnavailable):
		return auditErrKeySetUnavailable
	case errors.Is(err, ErrRefreshRateLimited), errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.As(err, &upstream):
		return auditErrUpstreamRejected
	case errors.Is(err, ErrUpstreamUnavailable), errors.Is(err, context.DeadlineExceeded):
		return auditErrUpstreamUnavailable
	default:
		return auditErrInternal
	}
}

type auditRecord struct {
	eventType string
	userID    string
	session   string
	path      string
	err       error
	metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: rec.eventType,
		UserID:    rec.userID,
		Session:   rec.session,
		IP:        ClientIPFromContext(ctx),
		Path:      rec.path,
		Success:   rec.err == nil,
		Error:     string(auditErrorCode(rec.err)),
		Metadata:  rec.metadata,
	})
}
