package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sociallab/sociallab/internal/core/domain"
	"github.com/sociallab/sociallab/internal/core/ports"
)

const verifierSuffix = "-code-verifier"

// StorageKey returns the key the identity client persists its session under
// for the project served at serviceURL: sb-<project-ref>-auth-token, where the
// project ref is the first label of the host name.
func StorageKey(serviceURL string) string {
	ref := "local"
	if u, err := url.Parse(serviceURL); err == nil && u.Hostname() != "" {
		ref = strings.SplitN(u.Hostname(), ".", 2)[0]
	}
	return "sb-" + ref + "-auth-token"
}

// SessionStore persists the current session as JSON in a key/value store.
type SessionStore struct {
	kv  ports.KeyValueStore
	key string
}

func NewSessionStore(kv ports.KeyValueStore, key string) *SessionStore {
	return &SessionStore{kv: kv, key: key}
}

func (s *SessionStore) Key() string { return s.key }

// Load returns the stored session, or nil when there is none. An unreadable
// entry is removed and treated as absent.
func (s *SessionStore) Load(ctx context.Context) (*domain.Session, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil || session.AccessToken == "" {
		_ = s.kv.Remove(ctx, s.key)
		return nil, nil
	}
	return &session, nil
}

func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// SaveVerifier keeps the PKCE code verifier until the callback redeems it.
func (s *SessionStore) SaveVerifier(ctx context.Context, verifier string) error {
	if err := s.kv.Set(ctx, s.key+verifierSuffix, verifier); err != nil {
		return fmt.Errorf("save code verifier: %w", err)
	}
	return nil
}

// TakeVerifier returns and removes the stored PKCE code verifier.
func (s *SessionStore) TakeVerifier(ctx context.Context) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, s.key+verifierSuffix)
	if err != nil {
		return "", false, fmt.Errorf("load code verifier: %w", err)
	}
	if ok {
		_ = s.kv.Remove(ctx, s.key+verifierSuffix)
	}
	return v, ok && v != "", nil
}
