package idp

import "time"

// Identity is the user as reported by the identity provider.
type Identity struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Tokens holds the short-lived credentials of a login or refresh response.
// The refresh token lives in RefreshGrant.
type Tokens struct {
	AccessToken string
	IDToken     string
	ExpiresIn   time.Duration
}

// RefreshGrant is the refresh credential returned by the provider. Token is empty
// when the provider did not rotate it; ExpiresIn is zero when no lifetime was sent.
type RefreshGrant struct {
	Token     Secret
	ExpiresIn time.Duration
}

// Rotated reports whether the provider issued a refresh token.
func (g RefreshGrant) Rotated() bool {
	return !g.Token.Empty()
}

// ExpiresAt returns the absolute refresh deadline relative to now, or the zero
// time when the lifetime is unknown.
func (g RefreshGrant) ExpiresAt(now time.Time) time.Time {
	if g.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(g.ExpiresIn)
}

// Result is a successful login or refresh.
type Result struct {
	Identity Identity
	Tokens   Tokens
	Refresh  RefreshGrant
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	JWT       struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		ExpiresIn        int64  `json:"expires_in"`
		RefreshExpiresIn int64  `json:"refresh_expires_in"`
		IDToken          string `json:"id_token"`
	} `json:"jwt"`
}

func (r *userResponse) result() *Result {
	return &Result{
		Identity: Identity{
			ID:        r.ID,
			Username:  r.Username,
			Email:     r.Email,
			FirstName: r.FirstName,
			LastName:  r.LastName,
		},
		Tokens: Tokens{
			AccessToken: r.JWT.AccessToken,
			IDToken:     r.JWT.IDToken,
			ExpiresIn:   time.Duration(r.JWT.ExpiresIn) * time.Second,
		},
		Refresh: RefreshGrant{
			Token:     Secret(r.JWT.RefreshToken),
			ExpiresIn: time.Duration(r.JWT.RefreshExpiresIn) * time.Second,
		},
	}
}
