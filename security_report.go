package authgate

import "github.com/MrEthical07/authgate/internal/security"

// SecurityReport summarizes the engine's security posture, with human-readable
// warnings for weak settings. It holds no secrets.
type SecurityReport = security.Report

// SecurityReport returns the posture of e.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	return security.BuildReport(security.ReportInput{
		VerifierBaseURL:     cfg.Verifier.BaseURL,
		VerifierRealm:       cfg.Verifier.Realm,
		VerifierClientID:    cfg.Verifier.ClientID,
		VerifierLeeway:      cfg.Verifier.Leeway,
		TrustForwardedProto: cfg.Cookie.TrustForwardedProto,
		CookieName:          cfg.Cookie.Name,
		CacheMaxEntries:     cfg.Cache.MaxEntries,
		CacheSkew:           cfg.Cache.Skew,
		RefreshDedupe:       cfg.Cache.DedupeRefresh,
		RedisThrottle:       e.redisThrottle,
		MaxRefreshPerMinute: cfg.Security.MaxRefreshPerMinute,
		MaxLoginAttempts:    cfg.Security.MaxLoginAttempts,
		LoginCooldown:       cfg.Security.LoginCooldown,
		ThrottleFailClosed:  cfg.Security.ThrottleFailClosed,
		AuditEnabled:        cfg.Audit.Enabled,
		Audiences:           cfg.Audiences,
	})
}
