package gate

import (
	"context"
	"net/http"
)

type contextKey int

const (
	noStoreContextKey contextKey = iota
	privateContextKey
)

// Middleware applies the gate's decision before next runs.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(r.Context(), RequestFromHTTP(r))

		switch d.Outcome {
		case RedirectCanonicalHost:
			http.Redirect(w, r, d.Location, http.StatusPermanentRedirect)

		case RedirectToLanding, RedirectToProfile:
			w.Header().Set("Cache-Control", "private, no-store")
			http.Redirect(w, r, d.Location, http.StatusTemporaryRedirect)

		default:
			switch {
			case d.NoStore:
				SetNoStore(w.Header())
				r = r.WithContext(context.WithValue(r.Context(), noStoreContextKey, true))
			case d.Private:
				SetPrivate(w.Header())
				r = r.WithContext(context.WithValue(r.Context(), privateContextKey, true))
			}
			next.ServeHTTP(w, r)
		}
	})
}

// NoStoreFromContext reports whether the gate marked this request's response as
// uncacheable. Handlers that copy upstream headers (a reverse proxy) use it to drop
// conflicting cache directives.
func NoStoreFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(noStoreContextKey).(bool)
	return v
}

// PrivateFromContext reports whether the gate restricted this response to the
// visitor's browser cache. Like NoStoreFromContext, upstream cache directives should be
// dropped.
func PrivateFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(privateContextKey).(bool)
	return v
}

// SetPrivate keeps a gated page out of shared caches.
func SetPrivate(h http.Header) {
	h.Set("Cache-Control", "private, no-cache")
	h.Add("Vary", "Cookie")
}

// SetNoStore sets cache-disabling directives for browsers, proxies and CDNs.
func SetNoStore(h http.Header) {
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Add("Vary", "Cookie")
}

// StripCacheHeaders removes the directives SetNoStore and SetPrivate own.
func StripCacheHeaders(h http.Header) {
	for _, k := range []string{"Cache-Control", "Pragma", "Expires", "Etag", "Last-Modified"} {
		h.Del(k)
	}
}
