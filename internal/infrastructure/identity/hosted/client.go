// Package hosted talks to the hosted identity service over its REST API.
package hosted

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
	"github.com/sociallab/sociallab/internal/infrastructure/identity"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10

	// refreshMargin refreshes a session slightly before it actually expires.
	refreshMargin = 30 * time.Second
)

// Config captures the settings for reaching the identity service.
type Config struct {
	URL    string
	APIKey string
	// JWTSecret, when set, is used to verify access tokens on receipt.
	JWTSecret string
	Timeout   time.Duration
}

// Client implements ports.IdentityBackend against the hosted service. The
// current session lives in memory and is mirrored to the persistent store so
// it survives a restart.
type Client struct {
	baseURL string
	apiKey  string
	secret  []byte
	http    *http.Client
	store   *identity.SessionStore
	events  *identity.Broadcaster
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	session *domain.Session
	loaded  bool
}

var _ ports.IdentityBackend = (*Client)(nil)

func NewClient(cfg Config, kv ports.KeyValueStore, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := strings.TrimRight(cfg.URL, "/")
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		secret:  []byte(cfg.JWTSecret),
		http:    &http.Client{Timeout: timeout},
		store:   identity.NewSessionStore(kv, identity.StorageKey(base)),
		events:  identity.NewBroadcaster(),
		log:     log,
		now:     time.Now,
	}
}

func (c *Client) OnAuthStateChange(handler ports.AuthStateHandler) ports.Subscription {
	return c.events.Subscribe(handler)
}

// GetSession returns the current session, refreshing it when the access token
// has expired. A refresh the service rejects signs the client out.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	const op = "get_session"

	c.mu.Lock()
	if !c.loaded {
		stored, err := c.store.Load(ctx)
		if err != nil {
			c.mu.Unlock()
			return nil, domain.NewNetworkError(op, err)
		}
		c.session, c.loaded = stored, true
	}
	current := c.session
	c.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	if !current.Expired(c.now().Add(refreshMargin)) {
		return copySession(current), nil
	}

	refreshed, err := c.refresh(ctx, current.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrAuthRejected) {
			c.log.Info().Msg("stored session could not be refreshed, signing out")
			c.setSession(ctx, nil)
			c.events.Emit(domain.EventSignedOut, nil)
			return nil, nil
		}
		return nil, err
	}

	c.setSession(ctx, refreshed)
	c.events.Emit(domain.EventTokenRefreshed, refreshed)
	return copySession(refreshed), nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	const op = "sign_in"

	var resp sessionResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, op, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}

	session, err := c.toSession(op, resp)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, session)
	c.events.Emit(domain.EventSignedIn, session)
	return copySession(session), nil
}

// SignUp registers a new account. The service answers with a session when the
// account can sign in at once, and with the bare user when it first needs its
// email confirmed.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.SignUpResult, error) {
	const op = "sign_up"

	var resp sessionResponse
	body := map[string]any{"email": email, "password": password, "data": metadata}
	if err := c.do(ctx, op, http.MethodPost, "/auth/v1/signup", "", body, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		user := resp.bareUser()
		return &domain.SignUpResult{User: &user}, nil
	}

	session, err := c.toSession(op, resp)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, session)
	c.events.Emit(domain.EventSignedIn, session)

	user := session.User
	return &domain.SignUpResult{User: &user, Session: copySession(session)}, nil
}

// SignInWithOAuth checks that the provider is enabled and builds its authorize
// URL using the PKCE code flow. The verifier is kept in the persistent store
// until ExchangeCodeForSession redeems it.
func (c *Client) SignInWithOAuth(ctx context.Context, provider string, opts domain.OAuthOptions) (*domain.OAuthRedirect, error) {
	const op = "sign_in_oauth"

	var settings settingsResponse
	if err := c.do(ctx, op, http.MethodGet, "/auth/v1/settings", "", nil, &settings); err != nil {
		return nil, err
	}
	if !settings.External[provider] {
		return nil, domain.NewConfigurationError(op, fmt.Sprintf("Unsupported provider: provider %s is not enabled", provider))
	}

	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, domain.NewConfigurationError(op, "unable to start the sign-in flow")
	}
	if err := c.store.SaveVerifier(ctx, verifier); err != nil {
		return nil, domain.NewNetworkError(op, err)
	}

	q := url.Values{}
	q.Set("provider", provider)
	if opts.RedirectTo != "" {
		q.Set("redirect_to", opts.RedirectTo)
	}
	if len(opts.Scopes) > 0 {
		q.Set("scopes", strings.Join(opts.Scopes, " "))
	}
	q.Set("code_challenge", codeChallenge(verifier))
	q.Set("code_challenge_method", "s256")

	return &domain.OAuthRedirect{
		Provider: provider,
		URL:      c.baseURL + "/auth/v1/authorize?" + q.Encode(),
	}, nil
}

func (c *Client) ExchangeCodeForSession(ctx context.Context, code string) (*domain.Session, error) {
	const op = "oauth_callback"

	verifier, ok, err := c.store.TakeVerifier(ctx)
	if err != nil {
		return nil, domain.NewNetworkError(op, err)
	}
	if !ok {
		return nil, domain.NewAuthRejected(op, "Authentication flow expired, please sign in again")
	}

	var resp sessionResponse
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	if err := c.do(ctx, op, http.MethodPost, "/auth/v1/token?grant_type=pkce", "", body, &resp); err != nil {
		return nil, err
	}

	session, err := c.toSession(op, resp)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, session)
	c.events.Emit(domain.EventSignedIn, session)
	return copySession(session), nil
}

// SignOut always drops the local session and notifies subscribers; the remote
// revocation error, if any, is reported afterwards.
func (c *Client) SignOut(ctx context.Context, scope domain.SignOutScope) error {
	const op = "sign_out"

	c.mu.Lock()
	current := c.session
	c.mu.Unlock()

	var remoteErr error
	if current != nil && scope != domain.SignOutLocal {
		remoteErr = c.do(ctx, op, http.MethodPost, "/auth/v1/logout?scope="+url.QueryEscape(string(scope)), current.AccessToken, nil, nil)
		// An already revoked session is as good as signed out.
		if errors.Is(remoteErr, domain.ErrAuthRejected) {
			remoteErr = nil
		}
	}

	c.setSession(ctx, nil)
	c.events.Emit(domain.EventSignedOut, nil)
	return remoteErr
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	const op = "refresh_session"
	if refreshToken == "" {
		return nil, domain.NewAuthRejected(op, "Session expired")
	}

	var resp sessionResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, op, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &resp); err != nil {
		return nil, err
	}
	return c.toSession(op, resp)
}

// setSession replaces the in-memory session and mirrors it to the store. A
// store failure is logged; the in-memory session stays authoritative.
func (c *Client) setSession(ctx context.Context, s *domain.Session) {
	c.mu.Lock()
	c.session, c.loaded = copySession(s), true
	c.mu.Unlock()

	var err error
	if s == nil {
		err = c.store.Clear(ctx)
	} else {
		err = c.store.Save(ctx, s)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", c.store.Key()).Msg("persisting session failed")
	}
}

func (c *Client) toSession(op string, resp sessionResponse) (*domain.Session, error) {
	if resp.AccessToken == "" {
		return nil, domain.NewAuthRejected(op, "Authentication did not return a session")
	}

	claims, err := identity.ParseAccessToken(resp.AccessToken, c.secret)
	if err != nil {
		c.log.Warn().Err(err).Str("operation", op).Msg("access token rejected")
		return nil, domain.NewAuthRejected(op, "Invalid access token")
	}

	expiresAt := time.Time{}
	switch {
	case resp.ExpiresAt > 0:
		expiresAt = time.Unix(resp.ExpiresAt, 0).UTC()
	case claims.ExpiresAt != nil:
		expiresAt = claims.ExpiresAt.Time.UTC()
	case resp.ExpiresIn > 0:
		expiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}

	user := resp.User.toDomain()
	if user.ID == "" {
		user.ID = claims.Subject
	}
	if user.Email == "" {
		user.Email = claims.Email
	}

	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &domain.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

// do sends a JSON request and decodes a JSON answer into out. Failures come
// back as classified auth errors.
func (c *Client) do(ctx context.Context, op, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return domain.NewConfigurationError(op, "unable to encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.NewConfigurationError(op, "invalid identity service URL")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewNetworkError(op, fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response) error {
	var e errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &e)
	msg := e.message()

	c.log.Debug().Str("operation", op).Int("status", resp.StatusCode).Str("message", msg).Msg("identity service error")

	if strings.Contains(strings.ToLower(msg), "provider is not enabled") {
		return domain.NewConfigurationError(op, msg)
	}
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return domain.NewAuthRejected(op, msg)
	default:
		return domain.NewNetworkError(op, fmt.Errorf("identity service returned %d: %s", resp.StatusCode, msg))
	}
}

func newCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
