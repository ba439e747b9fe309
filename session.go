package enrollment

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sessionKeyPrincipalID       = "principal_id"
	sessionKeyPrincipalUsername = "principal_username"
)

// SessionBag is the per browser session key/value collaborator.
type SessionBag interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// SessionStore persists sessions server side.
type SessionStore interface {
	// Load returns a NotFound error for unknown or expired sessions.
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Destroy(ctx context.Context, id string) error
}

// Principal is the authenticated identity bound to a session at login.
type Principal struct {
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
}

// Session is a server side session. Values are strings so every store can
// persist them as a flat JSON object.
type Session struct {
	ID        string            `json:"id"`
	Values    map[string]string `json:"values"`
	ExpiresAt time.Time         `json:"expires_at"`
	dirty     bool
	destroyed bool
}

var _ SessionBag = (*Session)(nil)

// NewSession creates an empty session with a random identifier.
func NewSession(ttl time.Duration, now time.Time) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		Values:    map[string]string{},
		ExpiresAt: now.Add(ttl),
		dirty:     true,
	}, nil
}

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *Session) Get(key string) (string, bool) {
	if s == nil || s.Values == nil {
		return "", false
	}
	v, ok := s.Values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = map[string]string{}
	}
	s.Values[key] = value
	s.dirty = true
}

func (s *Session) Delete(key string) {
	if _, ok := s.Values[key]; !ok {
		return
	}
	delete(s.Values, key)
	s.dirty = true
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s != nil && s.dirty }

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Touch extends the expiry window.
func (s *Session) Touch(ttl time.Duration, now time.Time) {
	s.ExpiresAt = now.Add(ttl)
	s.dirty = true
}

// Principal returns the identity written at login, if any.
func (s *Session) Principal() (*Principal, bool) {
	raw, ok := s.Get(sessionKeyPrincipalID)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return nil, false
	}
	username, _ := s.Get(sessionKeyPrincipalUsername)
	return &Principal{AccountID: id, Username: username}, true
}

// SetPrincipal binds the authenticated identity to the session.
func (s *Session) SetPrincipal(p Principal) {
	s.Set(sessionKeyPrincipalID, p.AccountID.String())
	s.Set(sessionKeyPrincipalUsername, p.Username)
}

// Regenerate issues a new identifier keeping the values, used on login to
// avoid session fixation. It returns the previous identifier.
func (s *Session) Regenerate() (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	old := s.ID
	s.ID = id
	s.dirty = true
	return old, nil
}

// Invalidate marks the session as destroyed so it is not written back.
func (s *Session) Invalidate() {
	s.Values = map[string]string{}
	s.destroyed = true
}

// Destroyed reports whether Invalidate was called.
func (s *Session) Destroyed() bool { return s != nil && s.destroyed }

// Clear drops every value.
func (s *Session) Clear() {
	s.Values = map[string]string{}
	s.dirty = true
}

func (s *Session) clone() *Session {
	return &Session{
		ID:        s.ID,
		Values:    maps.Clone(s.Values),
		ExpiresAt: s.ExpiresAt,
	}
}

// MemorySessionStore keeps sessions in process. Suitable for tests and single
// instance deployments.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: map[string]*Session{},
		now:      time.Now,
	}
}

// WithClock injects the clock used for expiry checks.
func (m *MemorySessionStore) WithClock(now func() time.Time) *MemorySessionStore {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *MemorySessionStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, newNotFoundError("session", id)
	}
	if s.Expired(m.now()) {
		delete(m.sessions, id)
		return nil, newNotFoundError("session", id)
	}
	return s.clone(), nil
}

func (m *MemorySessionStore) Save(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session.clone()
	session.dirty = false
	return nil
}

func (m *MemorySessionStore) Destroy(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}
