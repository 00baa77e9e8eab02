package ports

import (
	"context"

	"github.com/sociallab/sociallab/internal/core/domain"
)

// AuthStateHandler receives backend auth-change notifications. It may run while
// the backend holds its internal lock, so it must not call back into the backend.
type AuthStateHandler func(event domain.AuthEvent, session *domain.Session)

// Subscription is the disposable handle returned by OnAuthStateChange.
// Unsubscribe is safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

// IdentityBackend is the hosted identity service the auth core talks to.
type IdentityBackend interface {
	// GetSession recovers the current session, or nil when there is none.
	GetSession(ctx context.Context) (*domain.Session, error)
	OnAuthStateChange(handler AuthStateHandler) Subscription
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.SignUpResult, error)
	// SignInWithOAuth returns the provider URL; authentication completes after the
	// browser comes back to the callback path.
	SignInWithOAuth(ctx context.Context, provider string, opts domain.OAuthOptions) (*domain.OAuthRedirect, error)
	ExchangeCodeForSession(ctx context.Context, code string) (*domain.Session, error)
	SignOut(ctx context.Context, scope domain.SignOutScope) error
}
