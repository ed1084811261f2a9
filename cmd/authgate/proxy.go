package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/MrEthical07/authgate/middleware"
	"go.uber.org/zap"
)

// newUpstreamProxy forwards authenticated requests to target, replacing the
// browser's cookies with the selected bearer.
func newUpstreamProxy(target *url.URL, logger *zap.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			middleware.ForwardBearer(pr.In, pr.Out)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("upstream request failed", zap.String("path", r.URL.Path), zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}
