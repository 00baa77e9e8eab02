package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/api/metrics"
	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

// Operation names, also used as metric labels.
const (
	OpSignIn        = "sign_in"
	OpSignUp        = "sign_up"
	OpSignInOAuth   = "sign_in_oauth"
	OpSignOut       = "sign_out"
	OpOAuthCallback = "oauth_callback"
)

// GoogleProvider is the OAuth provider used by SignInWithGoogle.
const GoogleProvider = "google"

var googleScopes = []string{"email", "profile"}

// OperationObserver is told when an auth operation starts and finishes so it
// can drive the in-flight flag and the last-error message.
type OperationObserver interface {
	OperationStarted(op string)
	OperationFinished(op string, err error)
}

// AuthOperations runs the auth commands. Each one scrubs local token storage,
// calls the backend and reports the outcome; resulting session changes reach
// the SessionTracker through the backend subscription.
type AuthOperations struct {
	backend  ports.IdentityBackend
	stores   []ports.KeyValueStore
	notifier ports.Notifier
	observer OperationObserver
	siteURL  string
	log      zerolog.Logger
}

func NewAuthOperations(
	backend ports.IdentityBackend,
	stores []ports.KeyValueStore,
	notifier ports.Notifier,
	siteURL string,
	log zerolog.Logger,
) *AuthOperations {
	return &AuthOperations{
		backend:  backend,
		stores:   stores,
		notifier: notifier,
		siteURL:  strings.TrimRight(siteURL, "/"),
		log:      log,
	}
}

// Observe installs the observer notified around every operation.
func (o *AuthOperations) Observe(observer OperationObserver) {
	o.observer = observer
}

// SignIn signs in with email and password. A best-effort global sign-out runs
// first so a session held elsewhere cannot conflict; its failure is ignored.
func (o *AuthOperations) SignIn(ctx context.Context, email, password string) (session *domain.Session, err error) {
	done := o.begin(OpSignIn)
	defer func() { done(err) }()

	o.cleanup(ctx)
	if soErr := o.backend.SignOut(ctx, domain.SignOutGlobal); soErr != nil {
		o.log.Debug().Err(soErr).Msg("pre-sign-in sign-out failed, continuing")
	}

	session, err = o.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, o.fail(ctx, OpSignIn, "Sign-in failed", err)
	}

	o.log.Info().Str("user_id", session.User.ID).Msg("signed in")
	o.notify(ctx, "Signed in", "Welcome to SocialLab", domain.VariantDefault)
	return session, nil
}

// SignUp registers a new account, passing seed as user metadata for profile
// provisioning. The caller must not assume the user is signed in afterwards:
// see SignUpResult.ConfirmationRequired.
func (o *AuthOperations) SignUp(ctx context.Context, email, password string, seed domain.ProfileSeed) (result *domain.SignUpResult, err error) {
	done := o.begin(OpSignUp)
	defer func() { done(err) }()

	o.cleanup(ctx)

	result, err = o.backend.SignUp(ctx, email, password, seed.Metadata())
	if err != nil {
		return nil, o.fail(ctx, OpSignUp, "Registration failed", err)
	}

	if result.ConfirmationRequired() {
		o.notify(ctx, "Registration complete", "Check your email to confirm your registration", domain.VariantDefault)
	} else {
		o.notify(ctx, "Registration complete", "Welcome to SocialLab", domain.VariantDefault)
	}
	o.log.Info().Bool("confirmation_required", result.ConfirmationRequired()).Msg("signed up")
	return result, nil
}

// SignInWithGoogle asks the backend for the Google redirect URL. It returns
// before authentication completes; the session is established when the
// browser comes back through the callback path.
func (o *AuthOperations) SignInWithGoogle(ctx context.Context) (redirect *domain.OAuthRedirect, err error) {
	done := o.begin(OpSignInOAuth)
	defer func() { done(err) }()

	o.cleanup(ctx)

	redirect, err = o.backend.SignInWithOAuth(ctx, GoogleProvider, domain.OAuthOptions{
		RedirectTo: o.siteURL + domain.CallbackPath,
		Scopes:     googleScopes,
	})
	if err != nil {
		return nil, o.fail(ctx, OpSignInOAuth, "Google sign-in failed", err)
	}

	o.log.Info().Str("provider", redirect.Provider).Msg("oauth redirect initiated")
	return redirect, nil
}

// SignOut revokes every session of the user.
func (o *AuthOperations) SignOut(ctx context.Context) (err error) {
	done := o.begin(OpSignOut)
	defer func() { done(err) }()

	o.cleanup(ctx)

	if err = o.backend.SignOut(ctx, domain.SignOutGlobal); err != nil {
		return o.fail(ctx, OpSignOut, "Sign-out failed", err)
	}

	o.log.Info().Msg("signed out")
	o.notify(ctx, "Signed out", "You have been signed out", domain.VariantDefault)
	return nil
}

// CompleteOAuthCallback finishes the provider round-trip: it exchanges the
// authorization code when present and then recovers the session.
func (o *AuthOperations) CompleteOAuthCallback(ctx context.Context, cb domain.OAuthCallback) (session *domain.Session, err error) {
	done := o.begin(OpOAuthCallback)
	defer func() { done(err) }()

	if cb.Error != "" {
		msg := cb.ErrorDescription
		if msg == "" {
			msg = "Authentication failed: " + cb.Error
		}
		return nil, o.fail(ctx, OpOAuthCallback, "Authentication error", domain.NewAuthRejected(OpOAuthCallback, msg))
	}

	if cb.Code != "" {
		if _, err = o.backend.ExchangeCodeForSession(ctx, cb.Code); err != nil {
			return nil, o.fail(ctx, OpOAuthCallback, "Authentication error", err)
		}
	}

	session, err = o.backend.GetSession(ctx)
	if err != nil {
		return nil, o.fail(ctx, OpOAuthCallback, "Authentication error", err)
	}
	if session == nil {
		return nil, o.fail(ctx, OpOAuthCallback, "Authentication error",
			domain.NewAuthRejected(OpOAuthCallback, "Authentication did not complete"))
	}

	o.log.Info().Str("user_id", session.User.ID).Msg("oauth callback completed")
	return session, nil
}

func (o *AuthOperations) begin(op string) func(error) {
	if o.observer != nil {
		o.observer.OperationStarted(op)
	}
	start := time.Now()
	return func(err error) {
		metrics.AuthOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		metrics.AuthOperationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
		if o.observer != nil {
			o.observer.OperationFinished(op, err)
		}
	}
}

func (o *AuthOperations) cleanup(ctx context.Context) {
	CleanupAuthState(ctx, o.log, o.stores...)
}

// fail classifies err, tells the user, and returns the classified error.
func (o *AuthOperations) fail(ctx context.Context, op, title string, err error) error {
	err = domain.ClassifyAuthError(op, err)
	o.log.Error().Err(err).Str("operation", op).Msg("auth operation failed")
	o.notify(ctx, title, err.Error(), domain.VariantDestructive)
	return err
}

func (o *AuthOperations) notify(ctx context.Context, title, description string, variant domain.NotificationVariant) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(ctx, domain.Notification{
		Title:       title,
		Description: description,
		Variant:     variant,
		CreatedAt:   time.Now().UTC(),
	})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration_error"
	default:
		return "network_error"
	}
}
