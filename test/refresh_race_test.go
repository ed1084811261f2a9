//go:build integration
// +build integration

package test

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authgate"
)

func raceRefresh(t *testing.T, dedupe bool) int64 {
	t.Helper()
	provider := newStubProvider(t, 5*time.Minute)
	provider.delay = 100 * time.Millisecond

	cfg := authgate.DefaultConfig()
	cfg.Provider.BaseURL = provider.server.URL
	cfg.Cache.DedupeRefresh = dedupe
	cfg.Security.MaxRefreshPerMinute = 0
	engine := buildEngine(t, cfg, nil)

	const workers = 16
	start := make(chan struct{})
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		req := cookieRequest(t, "rt-race")
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Authenticate(httptest.NewRecorder(), req)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
	}
	if engine.CacheLen() != 1 {
		t.Fatalf("expected 1 cache entry, got %d", engine.CacheLen())
	}
	return provider.refreshs.Load()
}

func TestConcurrentRefreshDeduplicated(t *testing.T) {
	if got := raceRefresh(t, true); got != 1 {
		t.Fatalf("expected 1 provider call with dedupe, got %d", got)
	}
}

func TestConcurrentRefreshWithoutDedupeAllSucceed(t *testing.T) {
	if got := raceRefresh(t, false); got < 2 {
		t.Fatalf("expected concurrent provider calls without dedupe, got %d", got)
	}
}
