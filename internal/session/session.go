// Package session holds the driver identity the coordinator operates under:
// agent id, display name, online flag, and the bearer credential. The
// credential is issued by the backend and forwarded opaquely; its claims are
// only read, never verified, since the client holds no signing secret.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession is returned by Store accessors when nobody is logged in.
var ErrNoSession = errors.New("no active session")

// Session is one driver's authenticated context. Construct on login, discard
// on logout; the zero value is not usable.
type Session struct {
	mu          sync.Mutex
	agentID     string
	displayName string
	token       string
	online      bool
	expiresAt   time.Time
}

// New builds a session from a bearer token and the profile returned by the
// login call. The agent id from the profile wins; the token's subject and
// expiry fill in what the profile doesn't carry.
func New(token, agentID, displayName string) (*Session, error) {
	s := &Session{
		agentID:     agentID,
		displayName: displayName,
		token:       token,
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil {
		if s.agentID == "" {
			s.agentID = claims.Subject
		}
		if claims.ExpiresAt != nil {
			s.expiresAt = claims.ExpiresAt.Time
		}
	}

	if s.agentID == "" {
		return nil, errors.New("credential carries no agent identity")
	}
	return s, nil
}

// AgentID returns the driver's stable identifier.
func (s *Session) AgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentID
}

// DisplayName returns the driver's display name.
func (s *Session) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

// Token returns the bearer credential for outbound calls.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Online reports the driver's availability flag.
func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// SetOnline records the availability flag. Callers flip it only after the
// backend has acknowledged the change.
func (s *Session) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}

// Expired reports whether the credential's expiry, if it carried one, has
// passed.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.expiresAt.IsZero() && time.Now().After(s.expiresAt)
}

// Store is the process-wide identity provider: it holds the current session,
// if any, and doubles as the credential source for the order API client.
type Store struct {
	mu      sync.Mutex
	current *Session
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// Set installs a session.
func (st *Store) Set(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = s
}

// Clear removes the current session.
func (st *Store) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = nil
}

// Current returns the active session or ErrNoSession.
func (st *Store) Current() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.current == nil {
		return nil, ErrNoSession
	}
	return st.current, nil
}

// Token implements the order API credential source. It returns the empty
// string when nobody is logged in.
func (st *Store) Token() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.current == nil {
		return ""
	}
	return st.current.Token()
}
