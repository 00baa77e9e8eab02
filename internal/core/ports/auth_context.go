package ports

import (
	"context"

	"github.com/sociallab/sociallab/internal/core/domain"
)

// AuthContext is the capability set the rest of the application gets from the
// auth facade: one read model plus the auth commands.
type AuthContext interface {
	State() domain.AuthState

	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string, seed domain.ProfileSeed) (*domain.SignUpResult, error)
	SignInWithGoogle(ctx context.Context) (*domain.OAuthRedirect, error)
	// SignOut resets all auth state and returns the path to navigate to.
	SignOut(ctx context.Context) (string, error)
	// CompleteOAuthCallback finishes the provider round-trip and returns the path to navigate to.
	CompleteOAuthCallback(ctx context.Context, cb domain.OAuthCallback) (string, error)

	RefreshProfile(ctx context.Context) (*domain.Profile, error)
	ClearAuthError()
}
