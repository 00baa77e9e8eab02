package hosted

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/infrastructure/identity"
	"github.com/sociallab/sociallab/internal/infrastructure/kvstore"
)

const (
	testSecret = "hosted-secret"
	testAPIKey = "anon-key"
)

// fakeService emulates the identity REST API.
type fakeService struct {
	t *testing.T

	mu          sync.Mutex
	providers   map[string]bool
	passwordOK  bool
	refreshOK   bool
	failStatus  int
	logoutCalls int
	lastAPIKey  string
	lastBody    map[string]any
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		f.capture(r)
		if f.failStatus != 0 {
			w.WriteHeader(f.failStatus)
			return
		}
		switch r.URL.Query().Get("grant_type") {
		case "password":
			if !f.passwordOK {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Invalid login credentials"})
				return
			}
		case "refresh_token":
			if !f.refreshOK {
				writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "Invalid Refresh Token"})
				return
			}
		case "pkce":
		}
		writeJSON(w, http.StatusOK, f.session(time.Hour))
	})
	mux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		f.capture(r)
		// Confirmation required: the bare user comes back.
		writeJSON(w, http.StatusOK, map[string]any{"id": "u-new", "email": "new@example.com"})
	})
	mux.HandleFunc("/auth/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"external": f.providers})
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logoutCalls++
		f.mu.Unlock()
		if r.URL.Query().Get("scope") != "global" {
			f.t.Errorf("logout scope = %q", r.URL.Query().Get("scope"))
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (f *fakeService) capture(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAPIKey = r.Header.Get("apikey")
	f.lastBody = nil
	_ = json.NewDecoder(r.Body).Decode(&f.lastBody)
}

func (f *fakeService) body() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func (f *fakeService) logouts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalls
}

func (f *fakeService) session(ttl time.Duration) map[string]any {
	u := domain.User{ID: "u1", Email: "ana@example.com", Provider: "email"}
	token, exp, err := identity.SignAccessToken([]byte(testSecret), u, time.Now(), ttl)
	if err != nil {
		f.t.Errorf("sign token: %v", err)
	}
	return map[string]any{
		"access_token":  token,
		"token_type":    "bearer",
		"expires_in":    int(ttl.Seconds()),
		"expires_at":    exp.Unix(),
		"refresh_token": "refresh-1",
		"user": map[string]any{
			"id":           u.ID,
			"email":        u.Email,
			"app_metadata": map[string]any{"provider": "email"},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeService) (*Client, *kvstore.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	kv := kvstore.NewMemoryStore("persistent")
	c := NewClient(Config{URL: srv.URL, APIKey: testAPIKey, JWTSecret: testSecret, Timeout: 2 * time.Second}, kv, zerolog.Nop())
	return c, kv
}

func collect(c *Client) *[]domain.AuthEvent {
	var events []domain.AuthEvent
	c.OnAuthStateChange(func(ev domain.AuthEvent, _ *domain.Session) { events = append(events, ev) })
	return &events
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSignInWithPassword_PersistsSessionAndEmits(t *testing.T) {
	f := &fakeService{t: t, passwordOK: true}
	c, kv := newTestClient(t, f)
	events := collect(c)

	s, err := c.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if s.User.ID != "u1" || s.User.Provider != "email" {
		t.Fatalf("unexpected user %+v", s.User)
	}
	f.mu.Lock()
	apiKey := f.lastAPIKey
	f.mu.Unlock()
	if apiKey != testAPIKey {
		t.Fatalf("apikey header = %q", apiKey)
	}

	keys, _ := kv.Keys(context.Background())
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "sb-") || !strings.HasSuffix(keys[0], "-auth-token") {
		t.Fatalf("expected the session under sb-<ref>-auth-token, got %v", keys)
	}
	if len(*events) != 1 || (*events)[0] != domain.EventSignedIn {
		t.Fatalf("events = %v", *events)
	}
}

func TestSignInWithPassword_RejectedCredentials(t *testing.T) {
	f := &fakeService{t: t}
	c, _ := newTestClient(t, f)

	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "bad")
	if !errors.Is(err, domain.ErrAuthRejected) {
		t.Fatalf("expected AuthRejected, got %v", err)
	}
	if err.Error() != "Invalid login credentials" {
		t.Fatalf("message = %q; want backend message verbatim", err.Error())
	}
}

func TestServerErrorIsNetworkError(t *testing.T) {
	f := &fakeService{t: t, failStatus: http.StatusBadGateway}
	c, _ := newTestClient(t, f)

	_, err := c.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestUnreachableServiceIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: testAPIKey, Timeout: time.Second}, kvstore.NewMemoryStore("persistent"), zerolog.Nop())
	_, err := c.SignInWithPassword(context.Background(), "a@example.com", "pw")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestSignUp_ConfirmationRequiredAndMetadataSent(t *testing.T) {
	f := &fakeService{t: t}
	c, _ := newTestClient(t, f)

	res, err := c.SignUp(context.Background(), "new@example.com", "secret123", map[string]any{"full_name": "New"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if !res.ConfirmationRequired() || res.User == nil || res.User.ID != "u-new" {
		t.Fatalf("unexpected result %+v", res)
	}
	data, _ := f.body()["data"].(map[string]any)
	if data["full_name"] != "New" {
		t.Fatalf("metadata not forwarded: %+v", f.body())
	}
}

func TestGetSession_RestoresFromStore(t *testing.T) {
	f := &fakeService{t: t, passwordOK: true}
	c, kv := newTestClient(t, f)
	_, _ = c.SignInWithPassword(context.Background(), "ana@example.com", "pw")

	// A fresh client over the same store recovers the session.
	restored := NewClient(Config{URL: c.baseURL, APIKey: testAPIKey, JWTSecret: testSecret}, kv, zerolog.Nop())
	s, err := restored.GetSession(context.Background())
	if err != nil || s == nil || s.User.ID != "u1" {
		t.Fatalf("GetSession = %+v, %v", s, err)
	}
}

func TestGetSession_RefreshesExpired(t *testing.T) {
	f := &fakeService{t: t, passwordOK: true, refreshOK: true}
	c, _ := newTestClient(t, f)
	_, _ = c.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	events := collect(c)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	s, err := c.GetSession(context.Background())
	if err != nil || s == nil {
		t.Fatalf("GetSession = %+v, %v", s, err)
	}
	if f.body()["refresh_token"] != "refresh-1" {
		t.Fatalf("refresh token not sent: %+v", f.body())
	}
	if len(*events) != 1 || (*events)[0] != domain.EventTokenRefreshed {
		t.Fatalf("events = %v", *events)
	}
}

func TestGetSession_RejectedRefreshSignsOut(t *testing.T) {
	f := &fakeService{t: t, passwordOK: true}
	c, kv := newTestClient(t, f)
	_, _ = c.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	events := collect(c)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	s, err := c.GetSession(context.Background())
	if err != nil || s != nil {
		t.Fatalf("GetSession = %+v, %v; want nil, nil", s, err)
	}
	if keys, _ := kv.Keys(context.Background()); len(keys) != 0 {
		t.Fatalf("stored session not dropped: %v", keys)
	}
	if len(*events) != 1 || (*events)[0] != domain.EventSignedOut {
		t.Fatalf("events = %v", *events)
	}
}

func TestSignInWithOAuth_BuildsPKCEURL(t *testing.T) {
	f := &fakeService{t: t, providers: map[string]bool{"google": true}}
	c, kv := newTestClient(t, f)

	redirect, err := c.SignInWithOAuth(context.Background(), "google", domain.OAuthOptions{
		RedirectTo: "http://localhost:8080/auth/callback",
		Scopes:     []string{"email", "profile"},
	})
	if err != nil {
		t.Fatalf("SignInWithOAuth: %v", err)
	}

	u, _ := url.Parse(redirect.URL)
	q := u.Query()
	if u.Path != "/auth/v1/authorize" || q.Get("provider") != "google" ||
		q.Get("redirect_to") != "http://localhost:8080/auth/callback" ||
		q.Get("scopes") != "email profile" || q.Get("code_challenge_method") != "s256" {
		t.Fatalf("unexpected authorize URL %q", redirect.URL)
	}

	verifier, ok, _ := kv.Get(context.Background(), c.store.Key()+"-code-verifier")
	if !ok || codeChallenge(verifier) != q.Get("code_challenge") {
		t.Fatal("code challenge does not match the stored verifier")
	}
}

func TestSignInWithOAuth_ProviderDisabled(t *testing.T) {
	f := &fakeService{t: t, providers: map[string]bool{"google": false}}
	c, _ := newTestClient(t, f)

	_, err := c.SignInWithOAuth(context.Background(), "google", domain.OAuthOptions{})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestExchangeCodeForSession(t *testing.T) {
	f := &fakeService{t: t, providers: map[string]bool{"google": true}}
	c, _ := newTestClient(t, f)
	ctx := context.Background()

	if _, err := c.ExchangeCodeForSession(ctx, "code"); !errors.Is(err, domain.ErrAuthRejected) {
		t.Fatalf("expected AuthRejected without a pending flow, got %v", err)
	}

	_, _ = c.SignInWithOAuth(ctx, "google", domain.OAuthOptions{RedirectTo: "http://x/auth/callback"})
	events := collect(c)

	s, err := c.ExchangeCodeForSession(ctx, "code-1")
	if err != nil || s == nil {
		t.Fatalf("ExchangeCodeForSession = %+v, %v", s, err)
	}
	if body := f.body(); body["auth_code"] != "code-1" || body["code_verifier"] == "" {
		t.Fatalf("unexpected pkce body %+v", body)
	}
	if len(*events) != 1 || (*events)[0] != domain.EventSignedIn {
		t.Fatalf("events = %v", *events)
	}
}

func TestSignOut_RevokesRemotelyAndEmits(t *testing.T) {
	f := &fakeService{t: t, passwordOK: true}
	c, kv := newTestClient(t, f)
	ctx := context.Background()
	_, _ = c.SignInWithPassword(ctx, "ana@example.com", "pw")
	events := collect(c)

	if err := c.SignOut(ctx, domain.SignOutGlobal); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if n := f.logouts(); n != 1 {
		t.Fatalf("logout calls = %d", n)
	}
	if keys, _ := kv.Keys(ctx); len(keys) != 0 {
		t.Fatalf("session not cleared from store: %v", keys)
	}
	if len(*events) != 1 || (*events)[0] != domain.EventSignedOut {
		t.Fatalf("events = %v", *events)
	}
	if s, _ := c.GetSession(ctx); s != nil {
		t.Fatalf("expected no session after sign-out")
	}
}

func TestStorageKey(t *testing.T) {
	if got := identity.StorageKey("https://abcdef.supabase.co"); got != "sb-abcdef-auth-token" {
		t.Fatalf("StorageKey = %q", got)
	}
}
