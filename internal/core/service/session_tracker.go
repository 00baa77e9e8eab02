package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/api/metrics"
	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

// SessionTracker owns the live {Session, User, Profile, isLoading} state. It
// holds exactly one backend subscription and performs one session recovery on
// Start. Both paths write the full session/user pair under one lock, so the
// later write wins.
type SessionTracker struct {
	backend   ports.IdentityBackend
	loader    *ProfileLoader
	scheduler ports.Scheduler
	log       zerolog.Logger

	mu            sync.RWMutex
	session       *domain.Session
	user          *domain.User
	profile       *domain.Profile
	bootstrapping bool
	inFlight      int
	authError     string
	closed        bool
	sub           ports.Subscription

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewSessionTracker(
	backend ports.IdentityBackend,
	loader *ProfileLoader,
	scheduler ports.Scheduler,
	log zerolog.Logger,
) *SessionTracker {
	return &SessionTracker{
		backend:       backend,
		loader:        loader,
		scheduler:     scheduler,
		log:           log,
		bootstrapping: true,
	}
}

// Start subscribes to auth changes and then recovers the existing session.
// The subscription is registered first so no notification issued during
// recovery is lost. Start blocks until recovery resolves; isLoading is false
// afterwards whatever the outcome.
func (t *SessionTracker) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		sub := t.backend.OnAuthStateChange(t.handleAuthChange)

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			sub.Unsubscribe()
			return
		}
		t.sub = sub
		t.mu.Unlock()

		t.bootstrap(ctx)
	})
}

// Stop releases the subscription. Safe to call repeatedly or before Start.
// Work still in flight after Stop never writes state.
func (t *SessionTracker) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		sub := t.sub
		t.sub = nil
		t.mu.Unlock()

		if sub != nil {
			sub.Unsubscribe()
		}
	})
}

func (t *SessionTracker) bootstrap(ctx context.Context) {
	defer t.finishBootstrap()

	session, err := t.backend.GetSession(ctx)
	if err != nil {
		t.log.Error().Err(err).Msg("session recovery failed")
		t.SetAuthError(err.Error())
		return
	}

	user := sessionUser(session)
	t.log.Info().Bool("has_session", session != nil).Msg("session recovered")

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.session, t.user = session, user
	t.mu.Unlock()

	// Recovery is not running inside a backend notification, so the profile
	// is loaded inline and is in place once loading ends.
	if user != nil {
		t.applyProfile(user.ID, t.loader.FetchUserProfile(ctx, user.ID))
	}
}

func (t *SessionTracker) finishBootstrap() {
	t.mu.Lock()
	t.bootstrapping = false
	t.mu.Unlock()
}

// handleAuthChange runs on the backend's notification path, possibly under the
// backend's internal lock. Profile loading is posted to the scheduler instead
// of running here: a synchronous fetch would re-enter the backend client while
// it is still dispatching this notification.
func (t *SessionTracker) handleAuthChange(event domain.AuthEvent, session *domain.Session) {
	metrics.AuthEventsTotal.WithLabelValues(string(event)).Inc()
	user := sessionUser(session)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.session, t.user = session, user
	switch {
	case event == domain.EventSignedOut, user == nil:
		t.profile = nil
	case t.profile != nil && t.profile.ID != user.ID:
		t.profile = nil
	}
	t.mu.Unlock()

	t.log.Info().Str("event", string(event)).Bool("has_user", user != nil).Msg("auth state changed")

	if event != domain.EventSignedOut && user != nil {
		t.scheduleProfileLoad(user.ID)
	}
}

func (t *SessionTracker) scheduleProfileLoad(userID string) {
	t.scheduler.Submit(userID, func(ctx context.Context) {
		if t.isClosed() {
			return
		}
		t.applyProfile(userID, t.loader.FetchUserProfile(ctx, userID))
	})
}

// applyProfile stores a loaded profile unless the user changed meanwhile.
func (t *SessionTracker) applyProfile(userID string, profile *domain.Profile) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.user == nil || t.user.ID != userID {
		return
	}
	t.profile = profile
}

// RefreshProfile reloads the profile of the current user. It does nothing
// when no one is signed in.
func (t *SessionTracker) RefreshProfile(ctx context.Context) (*domain.Profile, error) {
	t.mu.RLock()
	user := t.user
	t.mu.RUnlock()
	if user == nil {
		return nil, nil
	}

	profile := t.loader.FetchUserProfile(ctx, user.ID)
	t.applyProfile(user.ID, profile)
	return profile, nil
}

// State returns a copy of the current auth state.
func (t *SessionTracker) State() domain.AuthState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := domain.AuthState{
		IsLoading:       t.bootstrapping || t.inFlight > 0,
		IsAuthenticated: t.user != nil,
		AuthError:       t.authError,
	}
	if t.session != nil {
		s := *t.session
		st.Session = &s
	}
	if t.user != nil {
		u := *t.user
		st.User = &u
	}
	if t.profile != nil {
		p := *t.profile
		st.Profile = &p
	}
	return st
}

// BeginOperation marks an explicit auth operation as in flight.
func (t *SessionTracker) BeginOperation() {
	t.mu.Lock()
	t.inFlight++
	t.mu.Unlock()
}

// EndOperation clears one in-flight mark.
func (t *SessionTracker) EndOperation() {
	t.mu.Lock()
	if t.inFlight > 0 {
		t.inFlight--
	}
	t.mu.Unlock()
}

func (t *SessionTracker) SetAuthError(msg string) {
	t.mu.Lock()
	if !t.closed {
		t.authError = msg
	}
	t.mu.Unlock()
}

func (t *SessionTracker) ClearAuthError() {
	t.SetAuthError("")
}

func (t *SessionTracker) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func sessionUser(s *domain.Session) *domain.User {
	if s == nil {
		return nil
	}
	u := s.User
	return &u
}
