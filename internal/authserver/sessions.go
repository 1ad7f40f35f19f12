package authserver

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// DefaultSessionTTL is how long a server session lives without use.
const DefaultSessionTTL = 24 * time.Hour

type serverSession struct {
	identity  types.SessionIdentity
	loginTime time.Time
	lastSeen  time.Time
}

// SessionStore holds server sessions in memory. Expired sessions are
// removed lazily on access. Safe for concurrent use.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*serverSession
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store whose sessions expire after ttl of
// inactivity. A non-positive ttl selects DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]*serverSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session for identity and returns its ID.
func (s *SessionStore) Create(identity types.SessionIdentity) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sessions[id.String()] = &serverSession{identity: identity, loginTime: now, lastSeen: now}
	return id.String()
}

// Get returns the identity of a live session and refreshes its expiry.
func (s *SessionStore) Get(id string) (types.SessionIdentity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return types.SessionIdentity{}, false
	}
	now := s.now()
	if now.Sub(sess.lastSeen) > s.ttl {
		delete(s.sessions, id)
		return types.SessionIdentity{}, false
	}
	sess.lastSeen = now
	return sess.identity, true
}

// Delete ends a session. Deleting an unknown session succeeds.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of sessions held, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
