package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authgate"
)

// Guard returns middleware that admits only authenticated requests.
func Guard(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeUnauthorized(w)
				return
			}

			res, err := engine.Authenticate(w, r)
			if err != nil {
				Deny(engine, w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(authgate.WithAuthResult(r.Context(), res)))
		})
	}
}

// Optional returns middleware that attaches the identity of authenticated
// requests and lets every request through.
func Optional(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine != nil {
				if res, err := engine.Authenticate(w, r); err == nil {
					r = r.WithContext(authgate.WithAuthResult(r.Context(), res))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deny writes the unauthenticated response for r: 401 JSON on API routes,
// otherwise a 303 redirect to the login path with a safe return destination.
func Deny(engine *authgate.Engine, w http.ResponseWriter, r *http.Request) {
	if engine == nil || engine.IsAPIRequest(r) {
		writeUnauthorized(w)
		return
	}
	http.Redirect(w, r, engine.LoginRedirectURL(r), http.StatusSeeOther)
}

// ClientIP returns middleware that records the remote address with
// authgate.WithClientIP for login throttling and audit events.
func ClientIP(next http.Handler) http.Handler {
	return ClientIPFromForwarded(0)(next)
}

// ClientIPFromForwarded is ClientIP for a deployment behind trustedHops
// proxies that each append to X-Forwarded-For. The client is the entry
// trustedHops positions from the right; entries further left are client
// supplied and ignored. A short header or an unparsable entry falls back to
// the remote address. Zero trustedHops ignores the header.
func ClientIPFromForwarded(trustedHops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := forwardedClientIP(r, trustedHops)
			if ip == "" {
				ip = remoteHost(r.RemoteAddr)
			}
			next.ServeHTTP(w, r.WithContext(authgate.WithClientIP(r.Context(), ip)))
		})
	}
}

func forwardedClientIP(r *http.Request, trustedHops int) string {
	if trustedHops <= 0 {
		return ""
	}
	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, part := range strings.Split(header, ",") {
			hops = append(hops, strings.TrimSpace(part))
		}
	}
	if len(hops) < trustedHops {
		return ""
	}
	ip := net.ParseIP(hops[len(hops)-trustedHops])
	if ip == nil {
		return ""
	}
	return ip.String()
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

type errorBody struct {
	Error string `json:"error"`
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
