package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/session"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	server       *httptest.Server
	refreshCalls atomic.Int64
	loginStatus  int
}

func unsignedToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + ".sig"
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{loginStatus: http.StatusOK}

	access := unsignedToken(t, map[string]interface{}{
		"sub":                "user-1",
		"preferred_username": "alice",
		"aud":                "orders-api",
		"exp":                time.Now().Add(5 * time.Minute).Unix(),
	})
	body := map[string]interface{}{
		"id":       "user-1",
		"username": "alice",
		"email":    "alice@example.com",
		"jwt": map[string]interface{}{
			"access_token":       access,
			"refresh_token":      "rt-rotated",
			"expires_in":         300,
			"refresh_expires_in": 1800,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", func(w http.ResponseWriter, r *http.Request) {
		if p.loginStatus != http.StatusOK {
			w.WriteHeader(p.loginStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/user/refresh", func(w http.ResponseWriter, r *http.Request) {
		p.refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(body)
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func newTestEngine(t *testing.T, p *fakeProvider) *authgate.Engine {
	t.Helper()
	cfg := authgate.DefaultConfig()
	cfg.Provider.BaseURL = p.server.URL
	cfg.Audiences = []string{"orders-api"}
	engine, err := authgate.New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func sessionCookie(t *testing.T, token string, expiresAt time.Time) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "https://app.example.com/", nil)
	_, err := session.WriteCookie(rec, req, session.NewCodec(), session.RefreshSession{
		RefreshToken:     token,
		RefreshExpiresAt: expiresAt,
	}, session.CookieOptions{})
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
