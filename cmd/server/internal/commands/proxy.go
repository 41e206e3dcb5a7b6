package commands

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/hireloop/gatekeeper/internal/gate"
	"github.com/rs/zerolog"
)

// newUpstreamProxy forwards requests to the web application, keeping the visitor's Host
// so the application builds absolute URLs for the public hostname.
func newUpstreamProxy(upstream *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ModifyResponse: func(resp *http.Response) error {
			// The gate already wrote cache directives; upstream values would be
			// appended after them.
			ctx := resp.Request.Context()
			if gate.NoStoreFromContext(ctx) || gate.PrivateFromContext(ctx) {
				gate.StripCacheHeaders(resp.Header)
				resp.Header.Del("Vary")
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("upstream", upstream.Host).Msg("Upstream request failed")
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}
