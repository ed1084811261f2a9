package authgate

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/authgate/jwt"
)

// BearerFromHeader extracts the token of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerFromHeader(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}

// SelectBearer picks the token to forward downstream. For each audience in
// order, the access token and then the ID token are checked; the first token
// declaring that audience wins. The access token is the fallback.
//
// The check reads unverified claims. It chooses between tokens the caller
// already holds and never grants access.
func SelectBearer(audiences []string, accessToken, idToken string) string {
	candidates := [2]string{accessToken, idToken}
	for _, aud := range audiences {
		for _, token := range candidates {
			if token != "" && jwt.DeclaresAudience(token, aud) {
				return token
			}
		}
	}
	return accessToken
}
