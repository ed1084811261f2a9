// Command authgate is a reverse proxy that authenticates browser sessions and
// forwards them to an upstream API as bearer tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/metrics/export/prometheus"
	"github.com/MrEthical07/authgate/middleware"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	logger, err := newLogger(logConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Error("authgate exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("authgate exited properly")
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	s, err := settingsFromEnv()
	if err != nil {
		return err
	}
	cfg, err := authgate.ConfigFromEnv(nil)
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.MetricsEnabled
	cfg.Audit.Enabled = s.AuditLog

	builder := authgate.New().WithConfig(cfg).WithLogger(logger)
	if s.AuditLog {
		builder = builder.WithAuditSink(authgate.NewLogSink(logger.Named("audit")))
	}
	if s.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis not reachable at startup; throttle fails open until it is", zap.Error(err))
		}
		cancel()
		builder = builder.WithRedis(rdb)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	logger.Info("configuration loaded",
		zap.String("listen_addr", s.ListenAddr),
		zap.String("upstream", s.UpstreamURL.Redacted()),
		zap.String("provider", cfg.Provider.BaseURL),
		zap.Bool("verifier", engine.VerifierEnabled()),
		zap.Bool("redis_throttle", s.RedisAddr != ""),
		zap.Strings("audiences", cfg.Audiences),
	)

	for _, w := range engine.SecurityReport().Warnings {
		logger.Warn("security posture", zap.String("warning", w))
	}

	e := newServer(engine, s, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.Start(s.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newServer(engine *authgate.Engine, s settings, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echo.WrapMiddleware(middleware.ClientIPFromForwarded(s.TrustedProxyHops)))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Int64("latency_ms", v.Latency.Milliseconds()),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("request completed", fields...)
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if s.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(prometheus.NewExporter(engine).Handler()))
	}

	e.POST("/auth/login", echo.WrapHandler(middleware.LoginHandler(engine)))
	e.POST("/auth/logout", echo.WrapHandler(middleware.LogoutHandler(engine)))
	e.GET("/auth/session", echo.WrapHandler(middleware.SessionHandler(engine)))

	proxy := echo.WrapHandler(newUpstreamProxy(s.UpstreamURL, logger))
	// The login page itself must stay reachable for page-route redirects.
	e.Any(engine.Config().Routes.LoginPath, proxy)
	e.Any("/*", proxy, middleware.EchoGuard(engine))

	return e
}
