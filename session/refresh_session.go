package session

import "time"

// RefreshSession is the client-held half of a login: the refresh credential and,
// when the identity provider reported one, its absolute expiry.
//
// A zero RefreshExpiresAt means the expiry is unknown.
type RefreshSession struct {
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Expired reports whether now is strictly after the session's refresh deadline.
// Sessions with an unknown deadline never expire on the client side.
func (s *RefreshSession) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.RefreshExpiresAt.IsZero() {
		return false
	}
	return now.After(s.RefreshExpiresAt)
}

// HasExpiry reports whether the session carries a known refresh deadline.
func (s *RefreshSession) HasExpiry() bool {
	return s != nil && !s.RefreshExpiresAt.IsZero()
}
