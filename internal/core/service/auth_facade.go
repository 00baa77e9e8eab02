package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

// Navigation targets returned by the facade.
const (
	LandingPath   = "/dashboard"
	SignInPath    = "/auth"
	SignedOutPath = "/"
)

// AuthFacade composes the session tracker and the auth operations into the
// single application-scoped auth state. Construct it once at startup and hand
// it to consumers through WithAuth.
type AuthFacade struct {
	ops        *AuthOperations
	newTracker func() *SessionTracker
	log        zerolog.Logger

	mu      sync.RWMutex
	tracker *SessionTracker
}

var _ ports.AuthContext = (*AuthFacade)(nil)

func NewAuthFacade(
	backend ports.IdentityBackend,
	profiles ports.ProfileRepository,
	scheduler ports.Scheduler,
	stores []ports.KeyValueStore,
	notifier ports.Notifier,
	siteURL string,
	log zerolog.Logger,
) *AuthFacade {
	loader := NewProfileLoader(profiles, log.With().Str("component", "profile_loader").Logger())
	trackerLog := log.With().Str("component", "session_tracker").Logger()

	f := &AuthFacade{
		ops: NewAuthOperations(backend, stores, notifier, siteURL, log.With().Str("component", "auth_operations").Logger()),
		newTracker: func() *SessionTracker {
			return NewSessionTracker(backend, loader, scheduler, trackerLog)
		},
		log: log,
	}
	f.tracker = f.newTracker()
	f.ops.Observe(f)
	return f
}

// Start bootstraps the auth state. It blocks until the initial session
// recovery resolves; State reports IsLoading until then.
func (f *AuthFacade) Start(ctx context.Context) {
	f.current().Start(ctx)
}

// Close releases the backend subscription.
func (f *AuthFacade) Close() {
	f.current().Stop()
}

func (f *AuthFacade) State() domain.AuthState {
	return f.current().State()
}

func (f *AuthFacade) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	return f.ops.SignIn(ctx, email, password)
}

func (f *AuthFacade) SignUp(ctx context.Context, email, password string, seed domain.ProfileSeed) (*domain.SignUpResult, error) {
	return f.ops.SignUp(ctx, email, password, seed)
}

func (f *AuthFacade) SignInWithGoogle(ctx context.Context) (*domain.OAuthRedirect, error) {
	return f.ops.SignInWithGoogle(ctx)
}

// SignOut signs out globally and then rebuilds the whole auth state from
// scratch so nothing from the previous session survives. On failure the state
// is left untouched.
func (f *AuthFacade) SignOut(ctx context.Context) (string, error) {
	if err := f.ops.SignOut(ctx); err != nil {
		return "", err
	}
	f.reset(ctx)
	return SignedOutPath, nil
}

// CompleteOAuthCallback returns LandingPath on success and SignInPath on failure.
func (f *AuthFacade) CompleteOAuthCallback(ctx context.Context, cb domain.OAuthCallback) (string, error) {
	if _, err := f.ops.CompleteOAuthCallback(ctx, cb); err != nil {
		return SignInPath, err
	}
	return LandingPath, nil
}

func (f *AuthFacade) RefreshProfile(ctx context.Context) (*domain.Profile, error) {
	return f.current().RefreshProfile(ctx)
}

func (f *AuthFacade) ClearAuthError() {
	f.current().ClearAuthError()
}

// OperationStarted implements OperationObserver.
func (f *AuthFacade) OperationStarted(string) {
	t := f.current()
	t.BeginOperation()
	t.ClearAuthError()
}

// OperationFinished implements OperationObserver.
func (f *AuthFacade) OperationFinished(_ string, err error) {
	t := f.current()
	if err != nil {
		t.SetAuthError(err.Error())
	}
	t.EndOperation()
}

// reset swaps in a fresh tracker before retiring the old one, so readers see
// a loading state rather than the previous user while it bootstraps.
func (f *AuthFacade) reset(ctx context.Context) {
	next := f.newTracker()

	f.mu.Lock()
	prev := f.tracker
	f.tracker = next
	f.mu.Unlock()

	prev.Stop()
	next.Start(ctx)
	f.log.Info().Msg("auth state reset")
}

func (f *AuthFacade) current() *SessionTracker {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tracker
}
