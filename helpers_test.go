package authgate

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/session"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	// Cookie deadlines carry millisecond precision.
	return &testClock{now: time.Now().Truncate(time.Millisecond)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// idpReply is what the fake identity provider returns from both endpoints.
type idpReply struct {
	Status           int
	AccessToken      string
	IDToken          string
	RefreshToken     string
	RefreshExpiresIn int64
}

type fakeIDP struct {
	server       *httptest.Server
	mu           sync.Mutex
	reply        idpReply
	refreshCalls atomic.Int64
	loginCalls   atomic.Int64
	lastRefresh  atomic.Value
}

func newFakeIDP(t testing.TB) *fakeIDP {
	t.Helper()
	f := &fakeIDP{reply: idpReply{Status: http.StatusOK}}

	handle := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		reply := f.reply
		f.mu.Unlock()

		if reply.Status != http.StatusOK {
			w.WriteHeader(reply.Status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(reply.Status)})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "user-1",
			"username": "alice",
			"email":    "alice@example.com",
			"jwt": map[string]interface{}{
				"access_token":       reply.AccessToken,
				"id_token":           reply.IDToken,
				"refresh_token":      reply.RefreshToken,
				"expires_in":         300,
				"refresh_expires_in": reply.RefreshExpiresIn,
			},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", func(w http.ResponseWriter, r *http.Request) {
		f.loginCalls.Add(1)
		handle(w, r)
	})
	mux.HandleFunc("/user/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastRefresh.Store(body.RefreshToken)
		handle(w, r)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIDP) set(reply idpReply) {
	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	f.mu.Lock()
	f.reply = reply
	f.mu.Unlock()
}

// unsignedToken builds a structurally valid token whose signature no verifier accepts.
func unsignedToken(t testing.TB, claims map[string]interface{}) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"RS256","kid":"k1"}`)) + "." + enc.EncodeToString(payload) + ".c2ln"
}

func accessClaims(exp time.Time) map[string]interface{} {
	return map[string]interface{}{
		"sub":                "user-1",
		"preferred_username": "alice",
		"email":              "alice@example.com",
		"exp":                exp.Unix(),
	}
}

type jwksServer struct {
	*httptest.Server
	key *rsa.PrivateKey
}

const (
	testRealm    = "test"
	testClientID = "web"
	testKID      = "k1"
)

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	s := &jwksServer{key: key}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/"+testRealm+"/protocol/openid-connect/certs" {
			http.NotFound(w, r)
			return
		}
		pub := key.PublicKey
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) sign(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	return signWith(t, s.key, claims)
}

func signWith(t *testing.T, key *rsa.PrivateKey, claims map[string]interface{}) string {
	t.Helper()
	token := gojwt.NewWithClaims(gojwt.SigningMethodRS256, gojwt.MapClaims(claims))
	token.Header["kid"] = testKID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

type engineOption func(*Config, *Builder)

func withVerifier(s *jwksServer) engineOption {
	return func(cfg *Config, b *Builder) {
		cfg.Verifier.BaseURL = s.URL
		cfg.Verifier.Realm = testRealm
		cfg.Verifier.ClientID = testClientID
		b.WithKeySets(jwt.NewKeySets())
	}
}

func withConfig(fn func(*Config)) engineOption {
	return func(cfg *Config, _ *Builder) { fn(cfg) }
}

func newTestEngine(t *testing.T, f *fakeIDP, clock *testClock, opts ...engineOption) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Provider.BaseURL = f.server.URL
	cfg.Metrics.Enabled = true

	b := New()
	for _, opt := range opts {
		opt(&cfg, b)
	}
	engine, err := b.WithConfig(cfg).withClock(clock.Now).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func cookieRequest(t testing.TB, path string, s session.RefreshSession) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	_, err := session.WriteCookie(rec, req, session.NewCodec(), s, session.CookieOptions{})
	require.NoError(t, err)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

// responseCookie returns the last session cookie written, which is the one the
// browser keeps.
func responseCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	var last *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			last = c
		}
	}
	return last
}

func decodeResponseCookie(t *testing.T, rec *httptest.ResponseRecorder) *session.RefreshSession {
	t.Helper()
	c := responseCookie(rec)
	require.NotNil(t, c, "no session cookie written")
	s := session.NewCodec().Decode(c.Value)
	require.NotNil(t, s, "session cookie not decodable")
	return s
}

func requireCleared(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	c := responseCookie(rec)
	require.NotNil(t, c, "cookie not cleared")
	require.Less(t, c.MaxAge, 0)
	require.Empty(t, c.Value)
}
