package middleware

import (
	"net/http"

	"github.com/MrEthical07/authgate"
)

// ForwardBearer sets the selected downstream bearer on an outbound request,
// typically from httputil.ReverseProxy's Rewrite or Director hook. Inbound
// cookies never leave the gateway. It reports whether a bearer was set.
func ForwardBearer(in, out *http.Request) bool {
	out.Header.Del("Cookie")
	res, ok := authgate.AuthResultFromContext(in.Context())
	if !ok || res.Bearer == "" {
		out.Header.Del("Authorization")
		return false
	}
	out.Header.Set("Authorization", "Bearer "+res.Bearer)
	return true
}
