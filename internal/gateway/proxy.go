package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/swgestor/backend/internal/httpx"
	"github.com/swgestor/backend/internal/metrics"
)

// apiPrefix is stripped from every proxied path before forwarding; the
// downstream services expose their routes without it.
const apiPrefix = "/api"

// newProxy builds a reverse proxy to one downstream service. Method, body,
// and query travel verbatim; the downstream response is relayed unchanged.
// An unreachable downstream answers 502.
func newProxy(target, name string, log zerolog.Logger) (http.Handler, error) {
	base, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("proxy target %q: %w", target, err)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = base.Scheme
			pr.Out.URL.Host = base.Host
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, apiPrefix)
			pr.Out.URL.RawPath = ""
			pr.Out.Host = base.Host
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn().Err(err).Str("target", name).Str("path", r.URL.Path).Msg("downstream unreachable")
			httpx.Error(w, http.StatusBadGateway, "downstream unavailable", err.Error())
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.ProxiedRequestsTotal.WithLabelValues(name).Inc()
		proxy.ServeHTTP(w, r)
	}), nil
}
