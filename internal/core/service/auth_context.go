package service

import (
	"context"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

type authContextKey struct{}

// WithAuth opens an auth provider scope: code running under the returned
// context can reach the facade through UseAuth.
func WithAuth(ctx context.Context, auth ports.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// UseAuth returns the auth facade of the enclosing provider scope. Calling it
// outside one is a programming error and panics with a usage error.
func UseAuth(ctx context.Context) ports.AuthContext {
	auth, ok := ctx.Value(authContextKey{}).(ports.AuthContext)
	if !ok || auth == nil {
		panic(domain.NewUsageError("UseAuth must be used within an auth provider scope"))
	}
	return auth
}
