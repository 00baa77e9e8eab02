package domain

import "time"

// CallbackPath is the fixed path the OAuth provider redirects back to.
const CallbackPath = "/auth/callback"

// Session is the credential bundle issued by the identity backend.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthEvent names a backend auth-change notification.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// SignOutScope selects which sessions a sign-out revokes.
type SignOutScope string

const (
	SignOutGlobal SignOutScope = "global"
	SignOutLocal  SignOutScope = "local"
)

// SignUpResult is what the backend returns for a registration. Session is nil
// when the account still needs its email confirmed.
type SignUpResult struct {
	User    *User
	Session *Session
}

// ConfirmationRequired reports whether the new account cannot sign in yet.
func (r *SignUpResult) ConfirmationRequired() bool {
	return r == nil || r.Session == nil
}

// OAuthOptions configures a provider redirect.
type OAuthOptions struct {
	RedirectTo string
	Scopes     []string
}

// OAuthRedirect is the provider URL the browser must be sent to.
type OAuthRedirect struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

// OAuthCallback carries the query parameters the provider round-trip lands with.
type OAuthCallback struct {
	Code             string
	Error            string
	ErrorDescription string
}

// AuthState is a point-in-time copy of the process-wide auth state.
// IsAuthenticated always equals User != nil.
type AuthState struct {
	Session         *Session
	User            *User
	Profile         *Profile
	IsLoading       bool
	IsAuthenticated bool
	AuthError       string
}
