package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/go-playground/validator/v10"
)

const maxLoginBody = 8 << 10

var validate = validator.New()

type loginRequest struct {
	Username string `json:"username" validate:"required,max=256"`
	Password string `json:"password" validate:"required,max=1024"`
}

type sessionResponse struct {
	User        authgate.Identity `json:"user"`
	AccessToken string            `json:"access_token,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	Verified    bool              `json:"verified"`
}

// LoginHandler accepts {"username","password"} as JSON, logs the user in, and
// answers with the identity and access token. The refresh token only travels in
// the Set-Cookie header.
//
// Status mapping: invalid body 400, login throttle 429, provider 4xx passes
// through, provider 5xx or unreachable 502.
func LoginHandler(engine *authgate.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method Not Allowed"})
			return
		}

		var req loginRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxLoginBody)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
		if err := validate.Struct(req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "username and password are required"})
			return
		}

		res, err := engine.Login(r.Context(), w, r, req.Username, req.Password)
		if err != nil {
			writeLoginError(w, err)
			return
		}

		body := sessionResponse{User: res.Identity, AccessToken: res.AccessToken}
		if !res.ExpiresAt.IsZero() {
			body.ExpiresAt = &res.ExpiresAt
		}
		writeJSON(w, http.StatusOK, body)
	})
}

func writeLoginError(w http.ResponseWriter, err error) {
	var upstream *authgate.UpstreamAuthError
	switch {
	case errors.Is(err, authgate.ErrInvalidLoginRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "username and password are required"})
	case errors.Is(err, authgate.ErrLoginRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Too Many Requests"})
	case errors.As(err, &upstream) && upstream.ClientError():
		msg := upstream.Message()
		if msg == "" {
			msg = http.StatusText(upstream.StatusCode)
		}
		writeJSON(w, upstream.StatusCode, errorBody{Error: msg})
	default:
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Bad Gateway"})
	}
}

// LogoutHandler clears the session cookie and answers 204.
func LogoutHandler(engine *authgate.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		engine.Logout(w, r)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusNoContent)
	})
}

// SessionHandler reports the current identity, or denies like Guard.
func SessionHandler(engine *authgate.Engine) http.Handler {
	return Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, _ := authgate.AuthResultFromContext(r.Context())
		body := sessionResponse{User: res.Identity, Verified: res.Verified()}
		if !res.ExpiresAt.IsZero() {
			body.ExpiresAt = &res.ExpiresAt
		}
		writeJSON(w, http.StatusOK, body)
	}))
}
