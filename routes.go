package authgate

import (
	"net/http"
	"net/url"
	"strings"
)

// IsAPIRequest reports whether r targets an API-style route. Denials on API
// routes are a 401 JSON body; all other routes redirect to the login page.
func (e *Engine) IsAPIRequest(r *http.Request) bool {
	if e == nil || r == nil || r.URL == nil {
		return false
	}
	prefix := e.config.Routes.APIPrefix
	path := r.URL.Path
	return strings.HasPrefix(path, prefix) || path == strings.TrimSuffix(prefix, "/")
}

// LoginRedirectURL returns the login path carrying r's path and query as the
// return destination.
func (e *Engine) LoginRedirectURL(r *http.Request) string {
	if e == nil {
		return "/login"
	}
	target := "/"
	if r != nil && r.URL != nil {
		target = e.SafeReturnTo(r.URL.RequestURI())
	}
	q := url.Values{}
	q.Set(e.config.Routes.ReturnToParam, target)
	return e.config.Routes.LoginPath + "?" + q.Encode()
}

// SafeReturnTo reduces raw to a same-origin path with optional query. Absolute
// URLs, protocol-relative paths, backslash tricks, and the login path itself
// all collapse to "/".
func (e *Engine) SafeReturnTo(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "/"
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") || strings.ContainsAny(raw, "\r\n\t") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "/"
	}
	if strings.Contains(u.Path, "\\") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	if e != nil && u.Path == e.config.Routes.LoginPath {
		return "/"
	}

	out := u.EscapedPath()
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}
