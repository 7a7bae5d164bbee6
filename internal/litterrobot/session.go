package litterrobot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultSessionTTL is how long a login is reused.
const DefaultSessionTTL = 24 * time.Hour

// Authenticator performs a vendor login. *Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (Session, error)
}

// Credentials are the account login details.
type Credentials struct {
	Email    string
	Password string
}

// SessionManager hands out the cached session, logging in when none is cached.
//
// A single mutex guards the check-then-login sequence, so however many
// callers race on a cold cache only one login request is ever in flight.
type SessionManager struct {
	mu     sync.Mutex
	auth   Authenticator
	creds  Credentials
	store  *Store
	ttl    time.Duration
	logger Logger
}

// NewSessionManager creates a session manager backed by store.
// A non-positive ttl selects DefaultSessionTTL.
func NewSessionManager(auth Authenticator, creds Credentials, store *Store, ttl time.Duration, logger Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		auth:   auth,
		creds:  creds,
		store:  store,
		ttl:    ttl,
		logger: orNop(logger),
	}
}

// GetSession returns the cached session or logs in. On failure the error
// matches ErrAuth and nothing is cached, so the next call tries again.
func (m *SessionManager) GetSession(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.store.session(); ok {
		return s, nil
	}

	m.logger.Debug("logging in to vendor API")
	s, err := m.auth.Login(ctx, m.creds.Email, m.creds.Password)
	if err != nil {
		m.logger.Warn("vendor login failed", "class", Classify(err), "error", err)
		return Session{}, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	m.store.SetMany(map[EntryKey]any{
		userIDKey: s.UserID,
		tokenKey:  s.Token,
	}, m.ttl)
	m.logger.Info("vendor session established", "user_id", s.UserID)

	return s, nil
}

// Invalidate drops the cached session if it is still the rejected one, so
// the next GetSession logs in again. A session that was already replaced by
// a concurrent login is left alone.
func (m *SessionManager) Invalidate(rejected Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.store.session()
	if !ok || current.Token != rejected.Token {
		return
	}
	m.store.Delete(userIDKey, tokenKey)
	m.logger.Info("vendor session invalidated")
}
