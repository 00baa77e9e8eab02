// Package local is an in-process identity service used for development and
// tests. It issues real HS256 access tokens and provisions profile rows on
// sign-up the way the hosted service does with its database trigger.
package local

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
	"github.com/sociallab/sociallab/internal/infrastructure/identity"
)

const (
	defaultSessionTTL = time.Hour
	codeTTL           = 5 * time.Minute
	minPasswordLength = 6

	providerEmail = "email"
)

// Config tunes the emulator.
type Config struct {
	JWTSecret                string
	SessionTTL               time.Duration
	RequireEmailConfirmation bool
	OAuthProviders           []string
}

type account struct {
	user         domain.User
	passwordHash []byte
}

type oauthCode struct {
	provider  string
	expiresAt time.Time
}

// Backend implements ports.IdentityBackend in memory. Auth-change handlers are
// invoked while the backend mutex is held, so a handler that calls back into
// the backend deadlocks.
type Backend struct {
	secret     []byte
	ttl        time.Duration
	confirm    bool
	providers  map[string]bool
	profiles   ports.ProfileRepository
	events     *identity.Broadcaster
	log        zerolog.Logger
	now        func() time.Time
	hashPasswd func(pw []byte) ([]byte, error)
	newID      func() string

	mu       sync.Mutex
	accounts map[string]*account // by lower-cased email
	refresh  map[string]string   // refresh token -> email
	codes    map[string]oauthCode
	current  *domain.Session
}

var _ ports.IdentityBackend = (*Backend)(nil)

func NewBackend(cfg Config, profiles ports.ProfileRepository, log zerolog.Logger) *Backend {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	providers := make(map[string]bool, len(cfg.OAuthProviders))
	for _, p := range cfg.OAuthProviders {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			providers[p] = true
		}
	}
	return &Backend{
		secret:    []byte(cfg.JWTSecret),
		ttl:       ttl,
		confirm:   cfg.RequireEmailConfirmation,
		providers: providers,
		profiles:  profiles,
		events:    identity.NewBroadcaster(),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		hashPasswd: func(pw []byte) ([]byte, error) {
			return bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
		},
		newID:    uuid.NewString,
		accounts: make(map[string]*account),
		refresh:  make(map[string]string),
		codes:    make(map[string]oauthCode),
	}
}

func (b *Backend) OnAuthStateChange(handler ports.AuthStateHandler) ports.Subscription {
	return b.events.Subscribe(handler)
}

// GetSession returns the current session, rotating its tokens when the access
// token has expired.
func (b *Backend) GetSession(_ context.Context) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil, nil
	}
	if !b.current.Expired(b.now()) {
		return copySession(b.current), nil
	}

	email, ok := b.refresh[b.current.RefreshToken]
	acct := b.accounts[email]
	if !ok || acct == nil {
		b.current = nil
		b.events.Emit(domain.EventSignedOut, nil)
		return nil, nil
	}
	delete(b.refresh, b.current.RefreshToken)

	session, err := b.issueLocked(acct)
	if err != nil {
		return nil, domain.NewConfigurationError("refresh_session", err.Error())
	}
	b.events.Emit(domain.EventTokenRefreshed, session)
	return copySession(session), nil
}

func (b *Backend) SignInWithPassword(_ context.Context, email, password string) (*domain.Session, error) {
	const op = "sign_in"

	b.mu.Lock()
	defer b.mu.Unlock()

	acct := b.accounts[normalizeEmail(email)]
	if acct == nil || acct.passwordHash == nil ||
		bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) != nil {
		return nil, domain.NewAuthRejected(op, "Invalid login credentials")
	}
	if acct.user.ConfirmedAt == nil {
		return nil, domain.NewAuthRejected(op, "Email not confirmed")
	}

	session, err := b.issueLocked(acct)
	if err != nil {
		return nil, domain.NewConfigurationError(op, err.Error())
	}
	b.events.Emit(domain.EventSignedIn, session)
	return copySession(session), nil
}

// SignUp creates the account and its profile row. With email confirmation
// enabled no session is issued until ConfirmUser runs.
func (b *Backend) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.SignUpResult, error) {
	const op = "sign_up"

	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.NewAuthRejected(op, "Unable to validate email address: invalid format")
	}
	if len(password) < minPasswordLength {
		return nil, domain.NewAuthRejected(op, fmt.Sprintf("Password should be at least %d characters", minPasswordLength))
	}

	hash, err := b.hashPasswd([]byte(password))
	if err != nil {
		return nil, domain.NewConfigurationError(op, "unable to hash password")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[email]; exists {
		return nil, domain.NewAuthRejected(op, "User already registered")
	}

	now := b.now()
	acct := &account{
		user: domain.User{
			ID:           b.newID(),
			Email:        email,
			Provider:     providerEmail,
			UserMetadata: metadata,
			CreatedAt:    now,
		},
		passwordHash: hash,
	}
	if !b.confirm {
		acct.user.ConfirmedAt = &now
	}

	if err := b.provisionProfile(ctx, acct.user); err != nil {
		if errors.Is(err, domain.ErrProfileExists) {
			return nil, domain.NewAuthRejected(op, "Username is already taken")
		}
		return nil, domain.NewNetworkError(op, err)
	}
	b.accounts[email] = acct
	b.log.Info().Str("user_id", acct.user.ID).Bool("confirmation_required", b.confirm).Msg("account created")

	user := acct.user
	if b.confirm {
		return &domain.SignUpResult{User: &user}, nil
	}

	session, err := b.issueLocked(acct)
	if err != nil {
		return nil, domain.NewConfigurationError(op, err.Error())
	}
	b.events.Emit(domain.EventSignedIn, session)
	return &domain.SignUpResult{User: &user, Session: copySession(session)}, nil
}

// ConfirmUser marks the account's email as confirmed, as following the
// confirmation link would.
func (b *Backend) ConfirmUser(email string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct := b.accounts[normalizeEmail(email)]
	if acct == nil {
		return fmt.Errorf("confirm user: %s is not registered", email)
	}
	if acct.user.ConfirmedAt == nil {
		now := b.now()
		acct.user.ConfirmedAt = &now
	}
	return nil
}

// SignInWithOAuth skips the provider consent screen: the returned URL points
// straight back at opts.RedirectTo with a one-time code.
func (b *Backend) SignInWithOAuth(_ context.Context, provider string, opts domain.OAuthOptions) (*domain.OAuthRedirect, error) {
	const op = "sign_in_oauth"

	provider = strings.ToLower(provider)
	if !b.providers[provider] {
		return nil, domain.NewConfigurationError(op, fmt.Sprintf("Unsupported provider: provider %s is not enabled", provider))
	}

	target, err := url.Parse(opts.RedirectTo)
	if err != nil || opts.RedirectTo == "" {
		return nil, domain.NewConfigurationError(op, "invalid redirect URL")
	}

	code := b.newID()
	b.mu.Lock()
	b.codes[code] = oauthCode{provider: provider, expiresAt: b.now().Add(codeTTL)}
	b.mu.Unlock()

	q := target.Query()
	q.Set("code", code)
	target.RawQuery = q.Encode()

	return &domain.OAuthRedirect{Provider: provider, URL: target.String()}, nil
}

// ExchangeCodeForSession redeems a code from SignInWithOAuth. The provider
// account is created, with its profile, on first use.
func (b *Backend) ExchangeCodeForSession(ctx context.Context, code string) (*domain.Session, error) {
	const op = "oauth_callback"

	b.mu.Lock()
	defer b.mu.Unlock()

	grant, ok := b.codes[code]
	delete(b.codes, code)
	if !ok || b.now().After(grant.expiresAt) {
		return nil, domain.NewAuthRejected(op, "Invalid or expired authorization code")
	}

	email := grant.provider + ".user@sociallab.local"
	acct := b.accounts[email]
	if acct == nil {
		now := b.now()
		acct = &account{user: domain.User{
			ID:           b.newID(),
			Email:        email,
			Provider:     grant.provider,
			UserMetadata: map[string]any{"full_name": strings.ToUpper(grant.provider[:1]) + grant.provider[1:] + " User"},
			ConfirmedAt:  &now,
			CreatedAt:    now,
		}}
		if err := b.provisionProfile(ctx, acct.user); err != nil && !errors.Is(err, domain.ErrProfileExists) {
			return nil, domain.NewNetworkError(op, err)
		}
		b.accounts[email] = acct
	}

	session, err := b.issueLocked(acct)
	if err != nil {
		return nil, domain.NewConfigurationError(op, err.Error())
	}
	b.events.Emit(domain.EventSignedIn, session)
	return copySession(session), nil
}

// SignOut drops the current session. The global scope also revokes every
// refresh token of the user.
func (b *Backend) SignOut(_ context.Context, scope domain.SignOutScope) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil
	}

	email := normalizeEmail(b.current.User.Email)
	if scope == domain.SignOutGlobal {
		for token, owner := range b.refresh {
			if owner == email {
				delete(b.refresh, token)
			}
		}
	} else {
		delete(b.refresh, b.current.RefreshToken)
	}

	b.current = nil
	b.events.Emit(domain.EventSignedOut, nil)
	return nil
}

// issueLocked mints a session for acct and makes it current. b.mu must be held.
func (b *Backend) issueLocked(acct *account) (*domain.Session, error) {
	token, exp, err := identity.SignAccessToken(b.secret, acct.user, b.now(), b.ttl)
	if err != nil {
		return nil, err
	}
	refresh := b.newID()
	b.refresh[refresh] = normalizeEmail(acct.user.Email)

	b.current = &domain.Session{
		AccessToken:  token,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    exp,
		User:         acct.user,
	}
	return copySession(b.current), nil
}

func (b *Backend) provisionProfile(ctx context.Context, u domain.User) error {
	if b.profiles == nil {
		return nil
	}
	p := &domain.Profile{ID: u.ID}
	if v, ok := u.UserMetadata["full_name"].(string); ok {
		p.FullName = v
	}
	if v, ok := u.UserMetadata["username"].(string); ok {
		p.Username = v
	}
	return b.profiles.CreateProfileRow(ctx, p)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
