package authgate

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authgate/cache"
	"github.com/MrEthical07/authgate/idp"
	"github.com/MrEthical07/authgate/internal/audit"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder defines a public type used by authgate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	httpClient *http.Client
	logger     *zap.Logger
	auditSink  AuditSink
	keySets    *jwt.KeySets
	decoders   []session.Decoder
	now        func() time.Time

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the refresh and login throttles with Redis so budgets are
// shared by every gateway replica. Without it the throttles are per process.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the client used for identity provider and key set calls.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not enable auditing; set Config.Audit.Enabled as well.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithKeySets shares a signing-key set cache between engines.
func (b *Builder) WithKeySets(keySets *jwt.KeySets) *Builder {
	b.keySets = keySets
	return b
}

// WithCookieDecoders replaces the ordered list of accepted cookie encodings.
// The current encoding is always used for writing.
func (b *Builder) WithCookieDecoders(decoders ...session.Decoder) *Builder {
	b.decoders = decoders
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) withClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and assembles the Engine. No network I/O
// happens here; the key set is fetched on the first verification.
//
// A Builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("authgate")

	provider, err := idp.NewClient(idp.Config{
		BaseURL:    cfg.Provider.BaseURL,
		Timeout:    cfg.Provider.Timeout,
		HTTPClient: b.httpClient,
	})
	if err != nil {
		return nil, err
	}

	// -------- VERIFIER --------
	var verifier *jwt.Verifier
	if cfg.Verifier.Enabled() {
		verifier = jwt.NewVerifier(jwt.VerifierConfig{
			IssuerURL:        jwt.IssuerURL(cfg.Verifier.BaseURL, cfg.Verifier.Realm),
			ClientID:         cfg.Verifier.ClientID,
			HTTPClient:       b.httpClient,
			Timeout:          cfg.Verifier.Timeout,
			RefreshRateLimit: cfg.Verifier.KeyRefreshRateLimit,
			Leeway:           cfg.Verifier.Leeway,
			KeySets:          b.keySets,
		})
	} else if cfg.Verifier.partial() {
		logger.Warn("verifier partially configured; token verification disabled",
			zap.Bool("base_url_set", cfg.Verifier.BaseURL != ""),
			zap.Bool("realm_set", cfg.Verifier.Realm != ""),
			zap.Bool("client_id_set", cfg.Verifier.ClientID != ""),
		)
	}

	// -------- THROTTLE --------
	limiterCfg := rate.Config{
		MaxRefreshPerMinute: cfg.Security.MaxRefreshPerMinute,
		MaxLoginAttempts:    cfg.Security.MaxLoginAttempts,
		LoginCooldown:       cfg.Security.LoginCooldown,
	}
	var limiter *rate.Limiter
	if b.redis != nil {
		limiter = rate.NewRedis(b.redis, limiterCfg)
	} else {
		limiter = rate.NewLocal(limiterCfg, cfg.Security.LocalThrottleKeys)
	}

	decoders := b.decoders
	if len(decoders) == 0 {
		decoders = session.DefaultDecoders()
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:   cfg,
		provider: provider,
		verifier: verifier,
		cache: cache.New(cache.Config{
			MaxEntries:    cfg.Cache.MaxEntries,
			Skew:          cfg.Cache.Skew,
			EvictFraction: cfg.Cache.EvictFraction,
			DedupeRefresh: cfg.Cache.DedupeRefresh,
		}),
		codec: session.NewCodec(decoders...),
		cookie: session.CookieOptions{
			Name:                cfg.Cookie.Name,
			TrustForwardedProto: cfg.Cookie.TrustForwardedProto,
			MaxSize:             cfg.Cookie.MaxSize,
		},
		limiter:       limiter,
		redisThrottle: b.redis != nil,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger.Named("audit"),
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
	}

	logger.Debug("engine built",
		zap.Bool("verifier", verifier != nil),
		zap.Bool("redis_throttle", b.redis != nil),
		zap.Int("cache_max_entries", cfg.Cache.MaxEntries),
		zap.Duration("cache_skew", cfg.Cache.Skew),
	)

	b.built = true

	return engine, nil
}
