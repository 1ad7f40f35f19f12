package authserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	s := NewSessionStore(0)
	identity := types.SessionIdentity{ID: "1", Username: "demouser"}

	id := s.Create(identity)
	require.NotEmpty(t, id)

	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, identity, got)

	s.Delete(id)
	s.Delete(id)
	_, ok = s.Get(id)
	assert.False(t, ok)
}

func TestSessionStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore(time.Hour)
	s.now = func() time.Time { return now }

	id := s.Create(types.SessionIdentity{ID: "1"})

	now = now.Add(50 * time.Minute)
	_, ok := s.Get(id)
	require.True(t, ok, "access refreshes the expiry")

	now = now.Add(50 * time.Minute)
	_, ok = s.Get(id)
	require.True(t, ok)

	now = now.Add(61 * time.Minute)
	_, ok = s.Get(id)
	assert.False(t, ok)
	assert.Zero(t, s.Len(), "expired sessions are removed on access")
}

func TestSessionStore_UniqueIDs(t *testing.T) {
	s := NewSessionStore(time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := s.Create(types.SessionIdentity{ID: "1"})
		assert.False(t, seen[id])
		seen[id] = true
	}
}
