// Package verify waits for a visitor's email address to be verified.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hireloop/gatekeeper/internal/models"
	"github.com/hireloop/gatekeeper/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 15 * time.Minute
	DefaultRedirect = "/profile"
)

var (
	// ErrPollerStopped is returned when the caller cancels before verification completes.
	ErrPollerStopped = errors.New("verification poller stopped")
	// ErrTimeout is returned when verification does not complete within the configured timeout.
	ErrTimeout = errors.New("timed out waiting for email verification")
	// ErrAlreadyRunning is returned by Run while another Run is in progress.
	ErrAlreadyRunning = errors.New("verification poller already running")

	errNotVerified = errors.New("email not verified yet")
	errVerified    = errors.New("email verified")
)

// SessionChecker performs one session check. It returns (nil, nil) when there is no
// session.
type SessionChecker interface {
	Session(ctx context.Context) (*models.Session, error)
}

// Config configures a Poller.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	// Redirect is where the visitor goes once verified; unsafe values fall back to
	// DefaultRedirect.
	Redirect string
}

// Result describes a completed verification.
type Result struct {
	Session  *models.Session
	Redirect string
}

// Poller checks the session immediately and then at a fixed interval until the user is
// verified. Checks never overlap within Run.
type Poller struct {
	checker  SessionChecker
	interval time.Duration
	timeout  time.Duration
	redirect string

	mu       sync.Mutex
	cancel   context.CancelCauseFunc
	verified *models.Session
}

// New creates a Poller.
func New(checker SessionChecker, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Poller{
		checker:  checker,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		redirect: SafeRedirect(cfg.Redirect, DefaultRedirect),
	}
}

// Run polls until the session is verified, the timeout elapses or ctx is cancelled.
// A successful CheckNow ends Run with the same result.
func (p *Poller) Run(ctx context.Context) (*Result, error) {
	runCtx, cancel := context.WithCancelCause(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		cancel(nil)
		return nil, ErrAlreadyRunning
	}
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		cancel(nil)
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
	}()

	pollCtx, stop := context.WithTimeoutCause(runCtx, p.timeout, ErrTimeout)
	defer stop()

	operation := func() (*models.Session, error) {
		session, err := p.check(pollCtx)
		if err != nil {
			return nil, err
		}
		if !session.IsVerified() {
			return nil, errNotVerified
		}
		return session, nil
	}

	// The deadline lives on pollCtx; backoff's own elapsed-time limit would stop one
	// interval early.
	session, err := backoff.Retry(pollCtx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.interval)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().Err(err).Dur("next", next).Msg("Waiting for email verification")
		}),
	)

	if errors.Is(context.Cause(runCtx), errVerified) {
		p.mu.Lock()
		session = p.verified
		p.mu.Unlock()
		return p.result(session), nil
	}

	switch {
	case err == nil:
		return p.result(session), nil
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %w", ErrPollerStopped, context.Cause(ctx))
	case errors.Is(context.Cause(pollCtx), ErrTimeout):
		return nil, fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
	default:
		return nil, fmt.Errorf("verification polling failed: %w", err)
	}
}

// CheckNow performs a check outside the polling schedule. When it finds a verified
// session, a running Run stops and returns the same result.
func (p *Poller) CheckNow(ctx context.Context) (*Result, bool, error) {
	session, err := p.check(ctx)
	if err != nil {
		return nil, false, err
	}
	if !session.IsVerified() {
		return nil, false, nil
	}

	p.mu.Lock()
	p.verified = session
	if p.cancel != nil {
		p.cancel(errVerified)
	}
	p.mu.Unlock()

	return p.result(session), true, nil
}

func (p *Poller) check(ctx context.Context) (*models.Session, error) {
	session, err := p.checker.Session(ctx)

	result := "unverified"
	switch {
	case err != nil:
		result = "error"
	case session.IsVerified():
		result = "verified"
	}
	telemetry.GetMetrics().VerificationChecksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))

	return session, err
}

func (p *Poller) result(session *models.Session) *Result {
	return &Result{Session: session, Redirect: p.redirect}
}

// SafeRedirect returns raw when it is a local absolute path, and fallback otherwise.
// Protocol-relative ("//host") and absolute URLs are rejected.
func SafeRedirect(raw, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}

	return raw
}
