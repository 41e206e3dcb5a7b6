package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hireloop/gatekeeper/internal/models"
	"github.com/hireloop/gatekeeper/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultProbeTimeout bounds a whole probe so the gate cannot become a latency amplifier.
	DefaultProbeTimeout = 3 * time.Second

	minProbeTimeout = time.Second
	maxProbeTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a session response is read.
	maxBodyBytes = 1 << 20
)

// Resolver answers whether the forwarded cookies belong to an active session.
// It returns ErrNoSession when the backend answered authoritatively without a session;
// any other error means this resolver could not answer and the next one should be tried.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, cookieHeader string) (*models.Session, error)
}

// EndpointResolver queries a single session-verification URL.
type EndpointResolver struct {
	URL    string
	Client *http.Client
}

func (e *EndpointResolver) Name() string {
	return e.URL
}

// Resolve forwards the cookie header verbatim and normalizes the response.
func (e *EndpointResolver) Resolve(ctx context.Context, cookieHeader string) (*models.Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	defer resp.Body.Close()

	if !IsSuccess(resp) {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	if !IsJSON(resp) {
		return nil, fmt.Errorf("%w: %q", ErrNotJSON, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read session response: %w", err)
	}

	session, err := Normalize(body)
	if err != nil {
		return nil, err
	}

	if session.IsExpired() {
		return nil, ErrNoSession
	}

	return session, nil
}

// Prober tries an ordered list of resolvers and stops at the first authoritative answer.
type Prober struct {
	resolvers []Resolver
	timeout   time.Duration
}

// NewProber creates a prober over the given session endpoint URLs, in order.
// A nil client gets a plain client; the probe timeout is enforced through the context.
func NewProber(client *http.Client, timeout time.Duration, urls ...string) *Prober {
	if client == nil {
		client = &http.Client{}
	}

	resolvers := make([]Resolver, 0, len(urls))
	for _, u := range urls {
		resolvers = append(resolvers, &EndpointResolver{URL: u, Client: client})
	}

	return NewProberWithResolvers(timeout, resolvers...)
}

// NewProberWithResolvers creates a prober over arbitrary resolvers.
// The timeout is clamped to [1s, 10s]; zero selects DefaultProbeTimeout.
func NewProberWithResolvers(timeout time.Duration, resolvers ...Resolver) *Prober {
	switch {
	case timeout == 0:
		timeout = DefaultProbeTimeout
	case timeout < minProbeTimeout:
		timeout = minProbeTimeout
	case timeout > maxProbeTimeout:
		timeout = maxProbeTimeout
	}

	return &Prober{resolvers: resolvers, timeout: timeout}
}

// Timeout returns the bound applied to a whole probe.
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// Probe returns the active session for the cookie header. It returns ErrNoSession when a
// resolver answered without a session and ErrAllCandidatesFailed (joined with each
// resolver's error) when none could answer. A timeout counts as a failure.
func (p *Prober) Probe(ctx context.Context, cookieHeader string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	m := telemetry.GetMetrics()
	started := time.Now()
	defer func() {
		m.ProbeDuration.Record(ctx, float64(time.Since(started).Milliseconds()))
	}()

	errs := []error{ErrAllCandidatesFailed}

	for _, r := range p.resolvers {
		session, err := r.Resolve(ctx, cookieHeader)
		switch {
		case err == nil:
			m.ProbeAttemptsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("candidate", r.Name()), attribute.String("result", "session")))
			return session, nil

		case errors.Is(err, ErrNoSession):
			m.ProbeAttemptsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("candidate", r.Name()), attribute.String("result", "no_session")))
			return nil, ErrNoSession
		}

		m.ProbeAttemptsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("candidate", r.Name()), attribute.String("result", "error")))

		log.Debug().Err(err).Str("candidate", r.Name()).Msg("Session candidate failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, errors.Join(errs...)
}

// Active reports whether the probe found a session. It never fails: every error,
// including a timeout, means no session.
func (p *Prober) Active(ctx context.Context, cookieHeader string) bool {
	session, err := p.Probe(ctx, cookieHeader)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			log.Warn().Err(err).Msg("Backend session probe failed, treating as no session")
		}
		return false
	}
	return session != nil
}
