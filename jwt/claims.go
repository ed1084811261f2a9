package jwt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var segmentParser = jwt.NewParser()

// UnverifiedClaims holds the payload of a token that has NOT been signature checked.
//
// The values are hints: cache bookkeeping, diagnostics, display data, and picking
// which token to forward. They must never decide whether a request is authorized;
// that is what VerifiedClaims is for.
type UnverifiedClaims struct {
	claims jwt.MapClaims
}

// DecodePayload structurally decodes the payload segment of token without verifying
// it. It returns nil for anything that is not a three-segment token with a JSON
// object payload.
func DecodePayload(token string) *UnverifiedClaims {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil
	}
	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil
	}
	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil || claims == nil {
		return nil
	}
	return &UnverifiedClaims{claims: claims}
}

// DeclaresAudience reports whether token's unverified aud claim equals expected or,
// for a list, contains it.
func DeclaresAudience(token, expected string) bool {
	if expected == "" {
		return false
	}
	c := DecodePayload(token)
	if c == nil {
		return false
	}
	return containsString(c.Audience(), expected)
}

// Subject returns the sub claim, or "".
func (c *UnverifiedClaims) Subject() string {
	if c == nil {
		return ""
	}
	sub, _ := c.claims.GetSubject()
	return sub
}

// Audience returns the aud claim as a list; a single string becomes one element.
func (c *UnverifiedClaims) Audience() []string {
	if c == nil {
		return nil
	}
	aud, err := c.claims.GetAudience()
	if err != nil {
		return nil
	}
	return aud
}

// AuthorizedParty returns the azp claim, or "".
func (c *UnverifiedClaims) AuthorizedParty() string {
	return c.String("azp")
}

// ExpiresAt returns the exp claim. The zero time means the claim is missing or
// unparseable.
func (c *UnverifiedClaims) ExpiresAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	exp, err := c.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// String returns a string-valued claim, or "" when absent or of another type.
func (c *UnverifiedClaims) String(name string) string {
	if c == nil {
		return ""
	}
	v, _ := c.claims[name].(string)
	return v
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
