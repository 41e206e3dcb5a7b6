// Package authstate holds the signed-in state of a session client: whether a session
// exists, whether it is still loading and whether the last fetch failed.
package authstate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hireloop/gatekeeper/internal/models"
	"github.com/hireloop/gatekeeper/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const legacyClearTimeout = 5 * time.Second

// Status is the lifecycle stage of a Store.
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Error
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// SessionSource is the backend the store reads from. Session returns (nil, nil) when the
// visitor has no session.
type SessionSource interface {
	Session(ctx context.Context) (*models.Session, error)
	ClearLegacyCookies(ctx context.Context) error
}

// State is an immutable snapshot of a Store.
type State struct {
	Status  Status
	Session *models.Session
	Err     error
}

// IsLoading reports whether a fetch is in flight.
func (s State) IsLoading() bool {
	return s.Status == Idle || s.Status == Loading
}

// IsAuthenticated is true while a session is held and no error is set. A refetch in
// flight keeps the previous session authenticated; a failed one does not.
func (s State) IsAuthenticated() bool {
	return s.Session != nil && s.Err == nil
}

// Store fetches the session on Start and on every Refetch. Results are applied in request
// order; a response to a superseded fetch is dropped.
type Store struct {
	source SessionSource

	mu        sync.Mutex
	state     State
	seq       uint64
	listeners map[int]func(State)
	nextID    int

	// legacyCleared is set by the first attempt to clear legacy cookies for this store.
	legacyCleared atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle Store.
func New(source SessionSource) *Store {
	ctx, cancel := context.WithCancel(context.Background())

	return &Store{
		source:    source,
		listeners: make(map[int]func(State)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start performs the initial fetch. Calling it on a store that already left Idle returns
// the current state without fetching.
func (s *Store) Start(ctx context.Context) State {
	s.mu.Lock()
	started := s.state.Status != Idle
	s.mu.Unlock()

	if started {
		return s.State()
	}

	return s.load(ctx)
}

// Refetch re-enters Loading from any state and fetches again.
func (s *Store) Refetch(ctx context.Context) State {
	return s.load(ctx)
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsAuthenticated reports whether the current snapshot holds a session.
func (s *Store) IsAuthenticated() bool {
	return s.State().IsAuthenticated()
}

// Subscribe registers fn to receive every state change. The returned function removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close waits for a pending legacy cookie clear and drops all listeners.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.listeners = make(map[int]func(State))
	s.mu.Unlock()
}

func (s *Store) load(ctx context.Context) State {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	loading := State{Status: Loading, Session: s.state.Session}
	s.state = loading
	s.mu.Unlock()
	s.notify(loading)

	session, err := s.source.Session(ctx)

	next := State{Status: Ready, Session: session}
	result := "session"
	switch {
	case err != nil:
		next = State{Status: Error, Session: loading.Session, Err: err}
		result = "error"
	case session == nil:
		result = "none"
	}

	telemetry.GetMetrics().SessionFetchesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))

	s.mu.Lock()
	if seq != s.seq {
		current := s.state
		s.mu.Unlock()
		log.Debug().Uint64("seq", seq).Msg("Discarding stale session fetch")
		return current
	}
	s.state = next
	s.mu.Unlock()
	s.notify(next)

	if err != nil {
		log.Warn().Err(err).Msg("Session fetch failed")
		return next
	}

	if session == nil {
		s.clearLegacyCookies()
	}

	return next
}

// clearLegacyCookies fires once per store. Its outcome never changes the state.
func (s *Store) clearLegacyCookies() {
	if !s.legacyCleared.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, legacyClearTimeout)
		defer cancel()

		telemetry.GetMetrics().LegacyCookieClearsTotal.Add(ctx, 1)

		if err := s.source.ClearLegacyCookies(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to clear legacy session cookies")
			return
		}
		log.Info().Msg("Requested legacy session cookie cleanup")
	}()
}

func (s *Store) notify(state State) {
	s.mu.Lock()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}
