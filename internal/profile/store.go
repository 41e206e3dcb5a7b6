// Package profile keeps the signed-in visitor's user record in step with their session.
package profile

import (
	"context"
	"sync"

	"github.com/hireloop/gatekeeper/internal/authstate"
	"github.com/hireloop/gatekeeper/internal/models"
	"github.com/rs/zerolog/log"
)

// UserSource looks up the authoritative record for the signed-in visitor.
type UserSource interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// State is a snapshot of the profile store.
type State struct {
	User    *models.User
	Loading bool
	Err     error
}

// IsStudent defaults to false until a user record is loaded.
func (s State) IsStudent() bool {
	return s.User != nil && s.User.IsStudent
}

// Store fetches the user whenever the session store becomes authenticated and forgets
// it whenever it stops being authenticated.
type Store struct {
	auth   *authstate.Store
	source UserSource

	mu    sync.Mutex
	state State
	seq   uint64
	// authenticated is the last value the store reacted to.
	authenticated *bool

	unsubscribe func()
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a Store bound to auth.
func New(auth *authstate.Store, source UserSource) *Store {
	return &Store{auth: auth, source: source}
}

// Start subscribes to the session store and reacts to its current state. Fetches
// triggered by later session changes run in the background until Close.
func (s *Store) Start(ctx context.Context) State {
	s.mu.Lock()
	if s.unsubscribe != nil || s.closed {
		s.mu.Unlock()
		return s.State()
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.unsubscribe = s.auth.Subscribe(s.onAuthChange)
	s.mu.Unlock()

	st := s.auth.State()
	if !st.IsLoading() {
		return s.react(ctx, st.IsAuthenticated(), false)
	}
	return s.State()
}

// onAuthChange may still be called after Close unsubscribes, since the session store
// notifies from a snapshot of its listeners.
func (s *Store) onAuthChange(authstate.State) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		// Goroutines may run out of order; always react to the latest state.
		if st := s.auth.State(); !st.IsLoading() {
			s.react(ctx, st.IsAuthenticated(), false)
		}
	}()
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsStudent reports whether the loaded user is a student.
func (s *Store) IsStudent() bool {
	return s.State().IsStudent()
}

// Retry fetches the user again if the session is authenticated.
func (s *Store) Retry(ctx context.Context) State {
	return s.react(ctx, s.auth.IsAuthenticated(), true)
}

// Close stops reacting to session changes and waits for background fetches.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe, cancel := s.unsubscribe, s.cancel
	s.unsubscribe = nil
	s.closed = true
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// react runs when the authenticated flag changes; force re-runs it regardless.
func (s *Store) react(ctx context.Context, authenticated, force bool) State {
	s.mu.Lock()
	if !force && s.authenticated != nil && *s.authenticated == authenticated {
		state := s.state
		s.mu.Unlock()
		return state
	}
	s.authenticated = &authenticated
	s.seq++
	seq := s.seq

	if !authenticated {
		s.state = State{}
		s.mu.Unlock()
		return State{}
	}

	s.state = State{User: s.state.User, Loading: true}
	s.mu.Unlock()

	user, err := s.source.CurrentUser(ctx)

	next := State{User: user}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load current user")
		next = State{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return s.state
	}
	s.state = next
	return next
}
