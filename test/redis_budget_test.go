//go:build integration
// +build integration

package test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authgate"
)

func TestRefreshBudgetSharedAcrossReplicas(t *testing.T) {
	_, rdb, counter := newCountedRedis(t)
	provider := newStubProvider(t, 0)

	cfg := authgate.DefaultConfig()
	cfg.Provider.BaseURL = provider.server.URL
	cfg.Security.MaxRefreshPerMinute = 2

	a := buildEngine(t, cfg, rdb)
	b := buildEngine(t, cfg, rdb)

	counter.Reset()
	if _, err := a.Authenticate(httptest.NewRecorder(), cookieRequest(t, "rt-shared")); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	// INCR and EXPIRE open the window.
	if got := counter.Commands(); got != 2 {
		t.Fatalf("first refresh: expected 2 redis commands, got %d", got)
	}

	counter.Reset()
	if _, err := b.Authenticate(httptest.NewRecorder(), cookieRequest(t, "rt-shared")); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}
	if got := counter.Commands(); got != 1 {
		t.Fatalf("second refresh: expected 1 redis command, got %d", got)
	}

	_, err := a.Authenticate(httptest.NewRecorder(), cookieRequest(t, "rt-shared"))
	if !errors.Is(err, authgate.ErrRefreshRateLimited) {
		t.Fatalf("expected ErrRefreshRateLimited, got %v", err)
	}
	if got := provider.refreshs.Load(); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}

	// Another session has its own budget.
	if _, err := b.Authenticate(httptest.NewRecorder(), cookieRequest(t, "rt-other")); err != nil {
		t.Fatalf("other session refresh failed: %v", err)
	}
}

func TestRefreshThrottleFailsOpenWhenRedisDown(t *testing.T) {
	mr, rdb, _ := newCountedRedis(t)
	provider := newStubProvider(t, 0)

	cfg := authgate.DefaultConfig()
	cfg.Provider.BaseURL = provider.server.URL
	cfg.Metrics.Enabled = true
	cfg.Security.MaxRefreshPerMinute = 5
	engine := buildEngine(t, cfg, rdb)

	mr.Close()

	if _, err := engine.Authenticate(httptest.NewRecorder(), cookieRequest(t, "rt-1")); err != nil {
		t.Fatalf("expected fail-open refresh, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[authgate.MetricThrottleUnavailable]; got != 1 {
		t.Fatalf("expected 1 throttle failure, got %d", got)
	}
}

func TestRefreshThrottleFailsClosedWhenConfigured(t *testing.T) {
	mr, rdb, _ := newCountedRedis(t)
	provider := newStubProvider(t, 0)

	cfg := authgate.DefaultConfig()
	cfg.Provider.BaseURL = provider.server.URL
	cfg.Security.MaxRefreshPerMinute = 5
	cfg.Security.ThrottleFailClosed = true
	engine := buildEngine(t, cfg, rdb)

	mr.Close()

	_, err := engine.Authenticate(httptest.NewRecorder(), cookieRequest(t, "rt-1"))
	if !errors.Is(err, authgate.ErrRefreshRateLimited) {
		t.Fatalf("expected ErrRefreshRateLimited, got %v", err)
	}
	if got := provider.refreshs.Load(); got != 0 {
		t.Fatalf("expected no provider calls, got %d", got)
	}
}

func TestSecurityReportNamesRedisThrottle(t *testing.T) {
	_, rdb, _ := newCountedRedis(t)
	cfg := authgate.DefaultConfig()
	cfg.Provider.BaseURL = "http://idp.invalid"

	if got := buildEngine(t, cfg, rdb).SecurityReport().Throttle; got != "redis" {
		t.Fatalf("expected redis throttle, got %q", got)
	}
	if got := buildEngine(t, cfg, nil).SecurityReport().Throttle; got != "local" {
		t.Fatalf("expected local throttle, got %q", got)
	}
}
