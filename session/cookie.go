package session

import (
	"net/http"
	"strings"
)

const (
	// DefaultCookieName is the historical name of the refresh-session cookie.
	DefaultCookieName = "refresh_session"
	// DefaultMaxCookieSize is the Set-Cookie size above which some clients drop the cookie.
	DefaultMaxCookieSize = 3600
)

// CookieOptions controls how the refresh-session cookie is written.
type CookieOptions struct {
	Name                string
	TrustForwardedProto bool
	MaxSize             int
}

func (o CookieOptions) name() string {
	if o.Name == "" {
		return DefaultCookieName
	}
	return o.Name
}

func (o CookieOptions) maxSize() int {
	if o.MaxSize <= 0 {
		return DefaultMaxCookieSize
	}
	return o.MaxSize
}

// WriteResult describes a written cookie.
type WriteResult struct {
	Size      int
	Oversized bool
}

// WriteCookie encodes s and sets it as the refresh-session cookie on w.
//
// The cookie is written even when it exceeds the size threshold; the caller decides
// how to surface WriteResult.Oversized.
func WriteCookie(w http.ResponseWriter, r *http.Request, codec *Codec, s RefreshSession, opts CookieOptions) (WriteResult, error) {
	value, err := codec.Encode(s)
	if err != nil {
		return WriteResult{}, err
	}

	cookie := baseCookie(r, opts)
	cookie.Value = value
	if !s.RefreshExpiresAt.IsZero() {
		cookie.Expires = s.RefreshExpiresAt.UTC()
	}

	serialized := cookie.String()
	http.SetCookie(w, cookie)

	return WriteResult{
		Size:      len(serialized),
		Oversized: len(serialized) > opts.maxSize(),
	}, nil
}

// ClearCookie expires the refresh-session cookie on the client.
func ClearCookie(w http.ResponseWriter, r *http.Request, opts CookieOptions) {
	cookie := baseCookie(r, opts)
	cookie.Value = ""
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

// ReadCookie returns the decoded refresh session carried by r, or nil when the cookie
// is absent or unreadable.
func ReadCookie(r *http.Request, codec *Codec, opts CookieOptions) *RefreshSession {
	if r == nil {
		return nil
	}
	c, err := r.Cookie(opts.name())
	if err != nil {
		return nil
	}
	return codec.Decode(c.Value)
}

// HasCookie reports whether r carries a refresh-session cookie, readable or not.
func HasCookie(r *http.Request, opts CookieOptions) bool {
	if r == nil {
		return false
	}
	_, err := r.Cookie(opts.name())
	return err == nil
}

// IsSecureRequest reports whether r arrived over TLS, directly or through a proxy
// that sets X-Forwarded-Proto.
func IsSecureRequest(r *http.Request, trustForwardedProto bool) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if !trustForwardedProto {
		return false
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

// HttpOnly stays false: page scripts check for the cookie to detect a session.
func baseCookie(r *http.Request, opts CookieOptions) *http.Cookie {
	return &http.Cookie{
		Name:     opts.name(),
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: false,
		Secure:   IsSecureRequest(r, opts.TrustForwardedProto),
	}
}
