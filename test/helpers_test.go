//go:build integration
// +build integration

package test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis Hook that counts throttle commands. Connection
// handshake commands (HELLO, CLIENT, PING) are not counted.
type cmdCounter struct {
	commands atomic.Int64
}

var throttleCommands = map[string]bool{"incr": true, "expire": true, "get": true, "del": true}

func (h *cmdCounter) count(cmd redis.Cmder) {
	if throttleCommands[strings.ToLower(cmd.Name())] {
		h.commands.Add(1)
	}
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.count(cmd)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			h.count(cmd)
		}
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset()          { h.commands.Store(0) }
func (h *cmdCounter) Commands() int64 { return h.commands.Load() }

func newCountedRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *cmdCounter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb, counter
}

// stubProvider answers /user/refresh with an access token expiring after
// accessTTL. A zero accessTTL omits exp, so the token is never served from cache
// and every request reaches the provider. It never rotates the refresh token.
type stubProvider struct {
	server   *httptest.Server
	refreshs atomic.Int64
	delay    time.Duration
}

func newStubProvider(t *testing.T, accessTTL time.Duration) *stubProvider {
	t.Helper()
	p := &stubProvider{}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/refresh" {
			http.NotFound(w, r)
			return
		}
		p.refreshs.Add(1)
		if p.delay > 0 {
			time.Sleep(p.delay)
		}
		claims := map[string]interface{}{"sub": "user-1"}
		if accessTTL > 0 {
			claims["exp"] = time.Now().Add(accessTTL).Unix()
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "user-1",
			"username": "alice",
			"jwt": map[string]interface{}{
				"access_token": unsignedToken(t, claims),
				"expires_in":   int(accessTTL / time.Second),
			},
		})
	}))
	t.Cleanup(p.server.Close)
	return p
}

func unsignedToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString(payload) + ".sig"
}

func buildEngine(t *testing.T, cfg authgate.Config, rdb redis.UniversalClient) *authgate.Engine {
	t.Helper()
	b := authgate.New().WithConfig(cfg)
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func cookieRequest(t *testing.T, refreshToken string) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	_, err := session.WriteCookie(rec, req, session.NewCodec(), session.RefreshSession{
		RefreshToken:     refreshToken,
		RefreshExpiresAt: time.Now().Add(time.Hour),
	}, session.CookieOptions{})
	if err != nil {
		t.Fatalf("WriteCookie failed: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}
