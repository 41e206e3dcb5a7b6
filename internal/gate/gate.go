// Package gate decides, per incoming request, whether the visitor may proceed or must be
// redirected.
//
// A decision is a function of the path, the cookie header, the bypass flags and the
// host, plus at most one backend probe. The gate never fails a request: unexpected
// errors degrade to letting the request through, except once a path is known to need a
// session, where they degrade to the landing redirect.
package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"

	"github.com/hireloop/gatekeeper/internal/backend"
	"github.com/hireloop/gatekeeper/internal/cookies"
	"github.com/hireloop/gatekeeper/internal/models"
	"github.com/hireloop/gatekeeper/internal/routes"
	"github.com/hireloop/gatekeeper/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome is the terminal state of a gate decision.
type Outcome int

const (
	Continue Outcome = iota
	RedirectToLanding
	RedirectToProfile
	RedirectCanonicalHost
)

func (o Outcome) String() string {
	switch o {
	case RedirectToLanding:
		return "redirect-landing"
	case RedirectToProfile:
		return "redirect-profile"
	case RedirectCanonicalHost:
		return "redirect-canonical-host"
	default:
		return "continue"
	}
}

// Decision reasons, used for logs and metrics.
const (
	ReasonCanonicalHost = "canonical-host"
	ReasonCookie        = "cookie"
	ReasonProbe         = "probe"
	ReasonNoSession     = "no-session"
	ReasonBypass        = "bypass"
	ReasonAlwaysAllow   = "always-allow"
	ReasonPublic        = "public"
	ReasonRecovered     = "recovered"
)

// Bypass flags grant a single navigation an exemption from the session check. They carry
// no signature or expiry.
var bypassFlags = []string{"postVerify", "postLogin"}

// SessionProber asks the backend whether a cookie header belongs to an active session.
type SessionProber interface {
	Probe(ctx context.Context, cookieHeader string) (*models.Session, error)
}

// Request is the subset of an HTTP request the gate decides on.
type Request struct {
	Path         string
	RawQuery     string
	Host         string
	CookieHeader string
}

// RequestFromHTTP extracts the decision inputs from r.
func RequestFromHTTP(r *http.Request) Request {
	return Request{
		Path:         r.URL.Path,
		RawQuery:     r.URL.RawQuery,
		Host:         r.Host,
		CookieHeader: r.Header.Get("Cookie"),
	}
}

// Decision is the gate's verdict for one request.
type Decision struct {
	Outcome  Outcome
	Class    routes.Class
	Location string
	// NoStore marks responses that must never be cached at all.
	NoStore bool
	// Private marks responses only the visitor's own browser may cache.
	Private bool
	Reason  string
}

// Config configures a Gate.
type Config struct {
	Routes    *routes.Table
	Inspector *cookies.Inspector
	Prober    SessionProber

	// Production enables apex to www canonicalization.
	Production    bool
	CanonicalHost string

	LandingPath string
	ProfilePath string
}

// Gate is safe for concurrent use; it holds read-only configuration only.
type Gate struct {
	routes      *routes.Table
	inspector   *cookies.Inspector
	prober      SessionProber
	canonical   *Canonicalizer
	landingPath string
	profilePath string
}

// New validates the configuration and creates a Gate.
func New(cfg Config) (*Gate, error) {
	if cfg.Prober == nil {
		return nil, errors.New("session prober is required")
	}

	if cfg.Routes == nil {
		cfg.Routes = routes.Default()
	}
	if err := cfg.Routes.Validate(); err != nil {
		return nil, fmt.Errorf("invalid route table: %w", err)
	}

	if cfg.Inspector == nil {
		cfg.Inspector = cookies.NewInspector()
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/"
	}
	if cfg.ProfilePath == "" {
		cfg.ProfilePath = "/profile"
	}

	g := &Gate{
		routes:      cfg.Routes,
		inspector:   cfg.Inspector,
		prober:      cfg.Prober,
		landingPath: cfg.LandingPath,
		profilePath: cfg.ProfilePath,
	}

	if cfg.Production {
		if cfg.CanonicalHost == "" {
			return nil, errors.New("canonical host is required in production")
		}
		canonical, err := NewCanonicalizer(cfg.CanonicalHost)
		if err != nil {
			return nil, err
		}
		g.canonical = canonical
	}

	return g, nil
}

// Decide runs the gate state machine for one request.
func (g *Gate) Decide(ctx context.Context, req Request) (d Decision) {
	logger := zerolog.Ctx(ctx)

	// requiresSession flips once the path is classified Protected/Admin; from then on a
	// recovered panic must not let the request through.
	requiresSession := false
	class := routes.Public

	defer func() {
		if rec := recover(); rec != nil {
			telemetry.GetMetrics().GateRecoveredTotal.Add(ctx, 1)
			logger.Error().
				Interface("panic", rec).
				Str("path", req.Path).
				Bytes("stack", debug.Stack()).
				Msg("Recovered panic in request gate")

			if requiresSession {
				d = g.toLanding(req, class, ReasonRecovered)
			} else {
				d = Decision{Outcome: Continue, Class: class, Reason: ReasonRecovered}
			}
		}

		g.record(ctx, req, d)
	}()

	if g.canonical != nil {
		if location, ok := g.canonical.Redirect(req.Host, req.Path, req.RawQuery); ok {
			return Decision{Outcome: RedirectCanonicalHost, Location: location, Reason: ReasonCanonicalHost}
		}
	}

	path := req.Path
	if path == "" {
		path = "/"
	}

	if path == g.landingPath {
		return g.decideLanding(ctx, req)
	}

	class = g.routes.Classify(path)

	switch {
	case class == routes.AlwaysAllow:
		return Decision{Outcome: Continue, Class: class, Reason: ReasonAlwaysAllow}

	case class.RequiresSession():
		requiresSession = true

		if hasBypassFlag(req.RawQuery) {
			return Decision{Outcome: Continue, Class: class, Private: true, Reason: ReasonBypass}
		}

		if token, ok := g.inspector.FromHeader(req.CookieHeader); ok {
			logger.Debug().Object("token", token).Msg("Session cookie present")
			return Decision{Outcome: Continue, Class: class, Private: true, Reason: ReasonCookie}
		}

		if g.probe(ctx, req.CookieHeader) {
			return Decision{Outcome: Continue, Class: class, Private: true, Reason: ReasonProbe}
		}

		return g.toLanding(req, class, ReasonNoSession)

	default:
		return Decision{Outcome: Continue, Class: class, Reason: ReasonPublic}
	}
}

// decideLanding sends signed-in visitors from the landing page to their profile. The
// anonymous landing response is marked no-store so a CDN never serves it to someone else.
func (g *Gate) decideLanding(ctx context.Context, req Request) Decision {
	if _, ok := g.inspector.FromHeader(req.CookieHeader); ok {
		return Decision{Outcome: RedirectToProfile, Class: routes.Public, Location: g.profilePath, Reason: ReasonCookie}
	}

	if g.probe(ctx, req.CookieHeader) {
		return Decision{Outcome: RedirectToProfile, Class: routes.Public, Location: g.profilePath, Reason: ReasonProbe}
	}

	return Decision{Outcome: Continue, Class: routes.Public, NoStore: true, Reason: ReasonNoSession}
}

// probe treats every failure, including a timeout, as no session.
func (g *Gate) probe(ctx context.Context, cookieHeader string) bool {
	session, err := g.prober.Probe(ctx, cookieHeader)
	if err != nil {
		if !errors.Is(err, backend.ErrNoSession) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Session probe failed, treating as no session")
		}
		return false
	}
	return session != nil
}

// toLanding builds the landing redirect, carrying the original destination in the
// redirect parameter without the bypass flags.
func (g *Gate) toLanding(req Request, class routes.Class, reason string) Decision {
	return Decision{
		Outcome:  RedirectToLanding,
		Class:    class,
		Location: g.landingPath + "?" + url.Values{"redirect": {returnTo(req)}}.Encode(),
		Reason:   reason,
	}
}

func (g *Gate) record(ctx context.Context, req Request, d Decision) {
	telemetry.GetMetrics().GateDecisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", d.Outcome.String()),
		attribute.String("reason", d.Reason),
		attribute.String("class", d.Class.String()),
	))

	zerolog.Ctx(ctx).Debug().
		Str("path", req.Path).
		Str("class", d.Class.String()).
		Str("outcome", d.Outcome.String()).
		Str("reason", d.Reason).
		Msg("Gate decision")
}

// hasBypassFlag ignores malformed queries rather than honoring a partial parse.
func hasBypassFlag(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return false
	}

	for _, flag := range bypassFlags {
		if values.Get(flag) == "1" {
			return true
		}
	}

	return false
}

func returnTo(req Request) string {
	path := req.Path
	if path == "" {
		path = "/"
	}

	values, err := url.ParseQuery(req.RawQuery)
	if err != nil || len(values) == 0 {
		return path
	}

	for _, flag := range bypassFlags {
		values.Del(flag)
	}

	if encoded := values.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}
