// Package cookies finds session-token cookies issued by the identity provider.
//
// The identity provider issues a "secure" cookie variant in production and a
// "legacy" variant elsewhere. Both are checked, in priority order, and the
// presence of either is enough to treat a visitor as signed in at the edge.
package cookies

import (
	"net/http"
	"net/url"

	"github.com/hireloop/gatekeeper/internal/models"
)

const (
	// SecureSessionCookie is the cookie name used when the provider sets the __Secure- prefix.
	SecureSessionCookie = "__Secure-better-auth.session_token"
	// LegacySessionCookie is the unprefixed name used in development and by older deployments.
	LegacySessionCookie = "better-auth.session_token"
)

// Inspector extracts session tokens using a fixed, ordered list of recognized names.
type Inspector struct {
	names []string
}

// NewInspector creates an inspector that recognizes the given names, highest priority first.
// With no names it recognizes the secure then legacy defaults.
func NewInspector(names ...string) *Inspector {
	if len(names) == 0 {
		names = []string{SecureSessionCookie, LegacySessionCookie}
	}

	cp := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			cp = append(cp, n)
		}
	}

	return &Inspector{names: cp}
}

// Names returns the recognized cookie names in priority order.
func (i *Inspector) Names() []string {
	out := make([]string, len(i.names))
	copy(out, i.names)
	return out
}

// FromRequest returns the highest priority session token on the request.
func (i *Inspector) FromRequest(r *http.Request) (models.SessionToken, bool) {
	return i.pick(r.Cookies())
}

// FromHeader parses a raw Cookie header value.
func (i *Inspector) FromHeader(header string) (models.SessionToken, bool) {
	if header == "" {
		return models.SessionToken{}, false
	}

	parsed, err := http.ParseCookie(header)
	if err != nil {
		// ParseCookie rejects the whole header on one bad pair; fall back to the lenient request parser.
		r := &http.Request{Header: http.Header{"Cookie": []string{header}}}
		parsed = r.Cookies()
	}

	return i.pick(parsed)
}

// FromResponse inspects the Set-Cookie headers of a response. Cookies being expired
// by the response are ignored.
func (i *Inspector) FromResponse(resp *http.Response) (models.SessionToken, bool) {
	live := make([]*http.Cookie, 0)
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			continue
		}
		live = append(live, c)
	}

	return i.pick(live)
}

// FromJar looks up session tokens stored in a cookie jar for the given URL.
func (i *Inspector) FromJar(jar http.CookieJar, u *url.URL) (models.SessionToken, bool) {
	if jar == nil || u == nil {
		return models.SessionToken{}, false
	}
	return i.pick(jar.Cookies(u))
}

// pick walks the recognized names in priority order, so the secure variant wins when both exist.
func (i *Inspector) pick(cookies []*http.Cookie) (models.SessionToken, bool) {
	for _, name := range i.names {
		for _, c := range cookies {
			if c.Name == name && c.Value != "" {
				return models.SessionToken{Name: name, Value: c.Value}, true
			}
		}
	}

	return models.SessionToken{}, false
}
