// Package client talks to the identity/profile backend from the client side:
// it holds the visitor's cookies and exposes the session check, the current-user
// lookup and the legacy-cookie clear.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/hireloop/gatekeeper/internal/backend"
	"github.com/hireloop/gatekeeper/internal/cookies"
	"github.com/hireloop/gatekeeper/internal/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"
)

var (
	// ErrUnauthenticated is returned by CurrentUser when the backend rejects the session.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Config holds common client configuration
type Config struct {
	APIURL   string
	AuthURL  string
	Timeout  time.Duration
	CacheDir string

	// Endpoints overrides the defaults derived from APIURL and AuthURL.
	Endpoints *backend.Endpoints
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		APIURL:  "http://localhost:3001",
		Timeout: 10 * time.Second,
	}
}

// Client is a cookie-carrying backend client for a single visitor.
type Client struct {
	endpoints backend.Endpoints
	jar       http.CookieJar
	http      *http.Client
	cached    *http.Client
	prober    *backend.Prober
	inspector *cookies.Inspector
}

// New creates a client with its own cookie jar.
func New(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("API URL is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	endpoints := backend.DefaultEndpoints(cfg.APIURL, cfg.AuthURL)
	if cfg.Endpoints != nil {
		endpoints = *cfg.Endpoints
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := otelhttp.NewTransport(http.DefaultTransport)

	httpClient := &http.Client{
		Jar:       jar,
		Timeout:   cfg.Timeout,
		Transport: transport,
	}

	return &Client{
		endpoints: endpoints,
		jar:       jar,
		http:      httpClient,
		cached: &http.Client{
			Jar:       jar,
			Timeout:   cfg.Timeout,
			Transport: newCachingTransport(transport, cfg.CacheDir),
		},
		prober:    backend.NewProber(httpClient, cfg.Timeout, endpoints.SessionCandidates...),
		inspector: cookies.NewInspector(),
	}, nil
}

// SetSessionToken stores a session cookie for every backend host the client talks to.
func (c *Client) SetSessionToken(name, value string) error {
	for _, raw := range c.hosts() {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid backend URL %q: %w", raw, err)
		}

		c.jar.SetCookies(u, []*http.Cookie{{
			Name:     name,
			Value:    value,
			Path:     "/",
			HttpOnly: true,
			Secure:   u.Scheme == "https",
		}})
	}

	return nil
}

// HasSessionCookie reports whether the jar currently holds a recognized session token.
func (c *Client) HasSessionCookie() bool {
	for _, raw := range c.hosts() {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if _, ok := c.inspector.FromJar(c.jar, u); ok {
			return true
		}
	}
	return false
}

// Session performs the session check. It returns (nil, nil) when the backend reports no
// session and an error only when no candidate endpoint could answer.
func (c *Client) Session(ctx context.Context) (*models.Session, error) {
	session, err := c.prober.Probe(ctx, "")
	if err != nil {
		if errors.Is(err, backend.ErrNoSession) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

// CurrentUser fetches the authoritative user record for the signed-in visitor.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.CurrentUser, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create current user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.cached.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current user: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthenticated
	case !backend.IsSuccess(resp):
		return nil, fmt.Errorf("%w: %s", backend.ErrUnexpectedStatus, resp.Status)
	case !backend.IsJSON(resp):
		return nil, backend.ErrNotJSON
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read current user: %w", err)
	}

	return backend.NormalizeUser(body)
}

// ClearLegacyCookies asks the backend to expire session cookies issued under an older
// naming scheme. Any response status is accepted; only transport failures are returned.
func (c *Client) ClearLegacyCookies(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.ClearLegacy, nil)
	if err != nil {
		return fmt.Errorf("failed to create legacy cookie clear request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to clear legacy cookies: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Debug().Int("status", resp.StatusCode).Msg("Legacy cookie clear requested")
	return nil
}

// hosts lists the distinct backend URLs whose cookies this client manages.
func (c *Client) hosts() []string {
	seen := make(map[string]bool)
	var out []string

	all := append([]string{c.endpoints.CurrentUser, c.endpoints.ClearLegacy}, c.endpoints.SessionCandidates...)
	for _, raw := range all {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host + "/"
		if !seen[origin] {
			seen[origin] = true
			out = append(out, origin)
		}
	}

	return out
}
