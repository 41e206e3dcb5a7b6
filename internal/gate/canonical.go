package gate

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Canonicalizer redirects the bare apex domain to the canonical www host.
type Canonicalizer struct {
	apex      string
	canonical string
}

// NewCanonicalizer derives the apex domain from the canonical host ("www.example.com"
// gives "example.com"). The canonical host must be a subdomain of its registrable domain.
func NewCanonicalizer(canonicalHost string) (*Canonicalizer, error) {
	canonical := strings.ToLower(strings.TrimSuffix(canonicalHost, "."))

	apex, err := publicsuffix.EffectiveTLDPlusOne(canonical)
	if err != nil {
		return nil, fmt.Errorf("invalid canonical host %q: %w", canonicalHost, err)
	}

	if apex == canonical {
		return nil, fmt.Errorf("canonical host %q must be a subdomain of %q", canonicalHost, apex)
	}

	return &Canonicalizer{apex: apex, canonical: canonical}, nil
}

// Apex returns the bare domain that gets redirected.
func (c *Canonicalizer) Apex() string {
	return c.apex
}

// Redirect returns the canonical URL for a request to the apex host, preserving path
// and query. It returns false for every other host.
func (c *Canonicalizer) Redirect(host, path, rawQuery string) (string, bool) {
	if !strings.EqualFold(stripPort(host), c.apex) {
		return "", false
	}

	if path == "" {
		path = "/"
	}

	location := "https://" + c.canonical + path
	if rawQuery != "" {
		location += "?" + rawQuery
	}

	return location, true
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.TrimSuffix(host, ".")
}
