package security

import "time"

type ThrottleBackend string

const (
	ThrottleRedis ThrottleBackend = "redis"
	ThrottleLocal ThrottleBackend = "local"
)

// Report summarizes the security-relevant settings of a running engine.
type Report struct {
	VerificationEnabled   bool
	VerifierPartial       bool
	VerifierLeeway        time.Duration
	TrustForwardedProto   bool
	CookieName            string
	CacheMaxEntries       int
	CacheSkew             time.Duration
	RefreshDedupe         bool
	Throttle              ThrottleBackend
	RefreshThrottleActive bool
	LoginThrottleActive   bool
	ThrottleFailClosed    bool
	AuditEnabled          bool
	DownstreamAudiences   []string
	Warnings              []string
}

type ReportInput struct {
	VerifierBaseURL     string
	VerifierRealm       string
	VerifierClientID    string
	VerifierLeeway      time.Duration
	TrustForwardedProto bool
	CookieName          string
	CacheMaxEntries     int
	CacheSkew           time.Duration
	RefreshDedupe       bool
	RedisThrottle       bool
	MaxRefreshPerMinute int
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
	ThrottleFailClosed  bool
	AuditEnabled        bool
	Audiences           []string
}

func BuildReport(input ReportInput) Report {
	verifierSet := 0
	for _, v := range []string{input.VerifierBaseURL, input.VerifierRealm, input.VerifierClientID} {
		if v != "" {
			verifierSet++
		}
	}

	r := Report{
		VerificationEnabled:   verifierSet == 3,
		VerifierPartial:       verifierSet > 0 && verifierSet < 3,
		VerifierLeeway:        input.VerifierLeeway,
		TrustForwardedProto:   input.TrustForwardedProto,
		CookieName:            input.CookieName,
		CacheMaxEntries:       input.CacheMaxEntries,
		CacheSkew:             input.CacheSkew,
		RefreshDedupe:         input.RefreshDedupe,
		Throttle:              ThrottleLocal,
		RefreshThrottleActive: input.MaxRefreshPerMinute > 0,
		LoginThrottleActive:   input.MaxLoginAttempts > 0 && input.LoginCooldown > 0,
		ThrottleFailClosed:    input.ThrottleFailClosed,
		AuditEnabled:          input.AuditEnabled,
		DownstreamAudiences:   append([]string(nil), input.Audiences...),
	}
	if input.RedisThrottle {
		r.Throttle = ThrottleRedis
	}

	if !r.VerificationEnabled {
		r.Warnings = append(r.Warnings, "access tokens are not verified; identities are display-only")
	}
	if r.VerifierPartial {
		r.Warnings = append(r.Warnings, "verifier partially configured")
	}
	if !r.LoginThrottleActive {
		r.Warnings = append(r.Warnings, "failed-login throttle disabled")
	}
	if !r.RefreshThrottleActive {
		r.Warnings = append(r.Warnings, "refresh throttle disabled")
	}
	if r.Throttle == ThrottleLocal {
		r.Warnings = append(r.Warnings, "throttle budgets are per process")
	}
	if input.VerifierLeeway > time.Minute {
		r.Warnings = append(r.Warnings, "verifier leeway exceeds one minute")
	}
	return r
}
