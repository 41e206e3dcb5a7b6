package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"filippo.io/csrf"
	"github.com/hireloop/gatekeeper/internal/backend"
	"github.com/hireloop/gatekeeper/internal/cookies"
	"github.com/hireloop/gatekeeper/internal/gate"
	httpmiddleware "github.com/hireloop/gatekeeper/internal/http"
	"github.com/hireloop/gatekeeper/internal/logger"
	"github.com/hireloop/gatekeeper/internal/routes"
	"github.com/hireloop/gatekeeper/internal/telemetry"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"GATEKEEPER_LISTEN"`
	Cert   string `help:"path to TLS cert file, plain HTTP when empty" default:"" env:"GATEKEEPER_TLS_CERT"`
	Key    string `help:"path to TLS key file, plain HTTP when empty" default:"" env:"GATEKEEPER_TLS_KEY"`

	// Upstreams
	Upstream string `help:"web application URL requests are forwarded to" required:"" env:"GATEKEEPER_UPSTREAM"`
	APIURL   string `name:"api-url" help:"backend API base URL" required:"" env:"GATEKEEPER_API_URL"`
	AuthURL  string `name:"auth-url" help:"auth service base URL, defaults to the API URL" default:"" env:"GATEKEEPER_AUTH_URL"`

	// Gate configuration
	Production     bool          `help:"enable production behavior (apex to www redirect)" default:"false" env:"GATEKEEPER_PRODUCTION"`
	CanonicalHost  string        `help:"canonical www host, required in production" default:"" env:"GATEKEEPER_CANONICAL_HOST"`
	ProbeTimeout   time.Duration `help:"bound on a backend session probe (1s to 10s)" default:"3s" env:"GATEKEEPER_PROBE_TIMEOUT"`
	SessionCookies []string      `help:"session cookie names in priority order" default:"${session_cookies}" env:"GATEKEEPER_SESSION_COOKIES"`
	RoutesFile     string        `help:"YAML route table, built-in table when empty" default:"" env:"GATEKEEPER_ROUTES_FILE"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"GATEKEEPER_CORS_ORIGINS"`

	// Telemetry
	Tracing     bool    `help:"enable tracing and metrics export" default:"false" env:"GATEKEEPER_TRACING"`
	SampleRatio float64 `help:"trace sampling ratio" default:"1" env:"GATEKEEPER_TRACE_SAMPLE_RATIO"`
}

// Vars are the kong variables referenced by ServeCmd defaults.
func Vars() map[string]string {
	return map[string]string{
		"session_cookies": cookies.SecureSessionCookie + "," + cookies.LegacySessionCookie,
	}
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting gatekeeper")

	if c.Tracing {
		log.Info().Float64("sample_ratio", c.SampleRatio).Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "gatekeeper", globals.Version, c.SampleRatio)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	handler, err := c.newHandler(log)
	if err != nil {
		return err
	}

	tls := c.Cert != "" || c.Key != ""
	if tls {
		if c.Cert == "" || c.Key == "" {
			return errors.New("both TLS certificate and key are required (--cert and --key)")
		}
		if _, err := os.Stat(c.Cert); err != nil {
			return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
		}
		if _, err := os.Stat(c.Key); err != nil {
			return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
		}
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", tls).Bool("production", c.Production).Msg("Starting HTTP server")
		if tls {
			errCh <- srv.ListenAndServeTLS(c.Cert, c.Key)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (c *ServeCmd) newHandler(log zerolog.Logger) (http.Handler, error) {
	upstream, err := url.Parse(c.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", c.Upstream)
	}

	table := routes.Default()
	if c.RoutesFile != "" {
		table, err = routes.Load(c.RoutesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
		log.Info().Str("file", c.RoutesFile).Msg("Loaded route table")
	}

	endpoints := backend.DefaultEndpoints(c.APIURL, c.AuthURL)
	prober := backend.NewProber(&http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, c.ProbeTimeout, endpoints.SessionCandidates...)

	g, err := gate.New(gate.Config{
		Routes:        table,
		Inspector:     cookies.NewInspector(c.SessionCookies...),
		Prober:        prober,
		Production:    c.Production,
		CanonicalHost: c.CanonicalHost,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create request gate: %w", err)
	}

	log.Info().
		Strs("session_candidates", endpoints.SessionCandidates).
		Dur("probe_timeout", prober.Timeout()).
		Msg("Request gate configured")

	proxy := newUpstreamProxy(upstream)

	// Cross-origin protection for pages, CORS for API passthrough
	protection := csrf.New()
	if c.CanonicalHost != "" {
		if err := protection.AddTrustedOrigin("https://" + c.CanonicalHost); err != nil {
			return nil, fmt.Errorf("invalid canonical host: %w", err)
		}
	}
	pages := protection.Handler(g.Middleware(gzhttp.GzipHandler(proxy)))
	api := withCORS(c.CORSOrigins, proxy)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIRoute(r.URL.Path) {
			api.ServeHTTP(w, r)
			return
		}
		pages.ServeHTTP(w, r)
	}))

	return otelhttp.NewHandler(httpmiddleware.AccessLog(log)(mux), "gatekeeper"), nil
}

// isAPIRoute returns true if the path is an API route that needs CORS instead of CSRF
func isAPIRoute(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// withCORS adds CORS support for cookie-authenticated API calls.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
		ExposedHeaders:   []string{httpmiddleware.RequestIDHeader},
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}
