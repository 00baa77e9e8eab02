package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Identity backend stub
// ---------------------------------------------------------------------------

type stubBackend struct {
	mu       sync.Mutex
	handlers map[int]ports.AuthStateHandler
	nextID   int

	session    *domain.Session
	getErr     error
	getCalls   int
	signInErr  error
	signUpRes  *domain.SignUpResult
	signUpErr  error
	oauthErr   error
	exchErr    error
	signOutErr error

	signOutScopes []domain.SignOutScope
	oauthProvider string
	oauthOpts     domain.OAuthOptions
	signUpMeta    map[string]any
	exchanged     []string

	// onCall runs at the start of every command, e.g. to inspect stores.
	onCall func(name string)
	// duringGet runs inside GetSession before the session is read.
	duringGet func()
	// calls records subscription and recovery calls in order.
	calls []string
}

func newStubBackend() *stubBackend {
	return &stubBackend{handlers: make(map[int]ports.AuthStateHandler)}
}

type stubSub struct {
	once sync.Once
	fn   func()
}

func (s *stubSub) Unsubscribe() { s.once.Do(s.fn) }

func (b *stubBackend) OnAuthStateChange(h ports.AuthStateHandler) ports.Subscription {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.calls = append(b.calls, "subscribe")
	b.mu.Unlock()
	return &stubSub{fn: func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}}
}

func (b *stubBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *stubBackend) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// emit delivers an event to every subscriber while holding the backend lock,
// like the real client does.
func (b *stubBackend) emit(ev domain.AuthEvent, s *domain.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.handlers {
		h(ev, s)
	}
}

func (b *stubBackend) called(name string) {
	if b.onCall != nil {
		b.onCall(name)
	}
}

func (b *stubBackend) GetSession(context.Context) (*domain.Session, error) {
	b.mu.Lock()
	b.getCalls++
	b.calls = append(b.calls, "get_session")
	during := b.duringGet
	b.mu.Unlock()

	if during != nil {
		during()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	if b.session == nil {
		return nil, nil
	}
	s := *b.session
	return &s, nil
}

func (b *stubBackend) SignInWithPassword(_ context.Context, email, _ string) (*domain.Session, error) {
	b.called("sign_in")
	if b.signInErr != nil {
		return nil, b.signInErr
	}
	s := &domain.Session{AccessToken: "tok", User: domain.User{ID: "u-" + email, Email: email}}
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()
	b.emit(domain.EventSignedIn, s)
	return s, nil
}

func (b *stubBackend) SignUp(_ context.Context, _, _ string, md map[string]any) (*domain.SignUpResult, error) {
	b.called("sign_up")
	b.signUpMeta = md
	if b.signUpErr != nil {
		return nil, b.signUpErr
	}
	if b.signUpRes != nil {
		return b.signUpRes, nil
	}
	return &domain.SignUpResult{User: &domain.User{ID: "u-new"}}, nil
}

func (b *stubBackend) SignInWithOAuth(_ context.Context, provider string, opts domain.OAuthOptions) (*domain.OAuthRedirect, error) {
	b.called("sign_in_oauth")
	b.oauthProvider, b.oauthOpts = provider, opts
	if b.oauthErr != nil {
		return nil, b.oauthErr
	}
	return &domain.OAuthRedirect{Provider: provider, URL: "https://idp.example/authorize"}, nil
}

func (b *stubBackend) ExchangeCodeForSession(_ context.Context, code string) (*domain.Session, error) {
	b.called("exchange")
	b.exchanged = append(b.exchanged, code)
	if b.exchErr != nil {
		return nil, b.exchErr
	}
	s := &domain.Session{AccessToken: "tok", User: domain.User{ID: "u-oauth"}}
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()
	b.emit(domain.EventSignedIn, s)
	return s, nil
}

func (b *stubBackend) SignOut(_ context.Context, scope domain.SignOutScope) error {
	b.called("sign_out")
	b.signOutScopes = append(b.signOutScopes, scope)
	if b.signOutErr != nil {
		return b.signOutErr
	}
	b.mu.Lock()
	hadSession := b.session != nil
	b.session = nil
	b.mu.Unlock()
	if hadSession {
		b.emit(domain.EventSignedOut, nil)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Profile repository stub
// ---------------------------------------------------------------------------

type stubProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
	getErr   error
	updErr   error
	gets     []string
	updates  []domain.ProfileUpdate
}

func newStubProfileRepo(profiles ...*domain.Profile) *stubProfileRepo {
	r := &stubProfileRepo{profiles: make(map[string]*domain.Profile)}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *stubProfileRepo) GetProfileRow(_ context.Context, userID string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets = append(r.gets, userID)
	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubProfileRepo) UpdateProfileRow(_ context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, upd)
	if r.updErr != nil {
		return nil, r.updErr
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	if upd.Username != nil {
		p.Username = *upd.Username
	}
	if upd.AvatarURL != nil {
		p.AvatarURL = *upd.AvatarURL
	}
	cp := *p
	return &cp, nil
}

func (r *stubProfileRepo) CreateProfileRow(_ context.Context, p *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.ID]; ok {
		return domain.ErrProfileExists
	}
	r.profiles[p.ID] = p
	return nil
}

func (r *stubProfileRepo) getCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gets)
}

// ---------------------------------------------------------------------------
// Key/value store stub
// ---------------------------------------------------------------------------

type stubStore struct {
	name    string
	data    map[string]string
	keysErr error
	rmErr   map[string]error
}

func newStubStore(name string, kv map[string]string) *stubStore {
	s := &stubStore{name: name, data: make(map[string]string), rmErr: make(map[string]error)}
	for k, v := range kv {
		s.data[k] = v
	}
	return s
}

func (s *stubStore) Name() string { return s.name }

func (s *stubStore) Keys(context.Context) ([]string, error) {
	if s.keysErr != nil {
		return nil, s.keysErr
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *stubStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *stubStore) Set(_ context.Context, key, value string) error {
	s.data[key] = value
	return nil
}

func (s *stubStore) Remove(_ context.Context, key string) error {
	if err := s.rmErr[key]; err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}

func (s *stubStore) authKeys() []string {
	var out []string
	for k := range s.data {
		if IsAuthStorageKey(k) {
			out = append(out, k)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Scheduler / notifier / storage stubs
// ---------------------------------------------------------------------------

// manualScheduler queues tasks until the test drains them, so tests can
// observe that nothing runs on the caller's stack.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []func(context.Context)
	keys  []string
}

func (s *manualScheduler) Submit(key string, task func(context.Context)) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.keys = append(s.keys, key)
	s.mu.Unlock()
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *manualScheduler) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.mu.Unlock()
		task(ctx)
	}
}

type stubNotifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (n *stubNotifier) Notify(_ context.Context, item domain.Notification) {
	n.mu.Lock()
	n.items = append(n.items, item)
	n.mu.Unlock()
}

func (n *stubNotifier) last() domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.items) == 0 {
		return domain.Notification{}
	}
	return n.items[len(n.items)-1]
}

type stubFileStorage struct {
	bucket, path, contentType string
	content                   string
	err                       error
}

func (s *stubFileStorage) UploadFile(_ context.Context, bucket, path string, r io.Reader, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	raw, _ := io.ReadAll(r)
	s.bucket, s.path, s.contentType, s.content = bucket, path, contentType, string(raw)
	return "http://localhost:8080/media/" + bucket + "/" + path, nil
}

func (s *stubFileStorage) OpenFile(context.Context, string, string) (io.ReadCloser, string, error) {
	if s.content == "" {
		return nil, "", errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(s.content)), s.contentType, nil
}

// netTimeout satisfies net.Error.
type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }
