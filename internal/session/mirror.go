package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// Mirror is the SessionIdentity copy kept at types.UserKey.
//
// Trusted reports whether the server confirmed the mirrored identity during
// the life of this Mirror, either through a login or a session check. An
// untrusted mirror may still be rendered.
type Mirror struct {
	mu      sync.Mutex
	store   types.Store
	trusted bool
}

// NewMirror creates a mirror over store.
func NewMirror(store types.Store) *Mirror {
	return &Mirror{store: store}
}

// Load returns the mirrored identity. An absent, unreadable, corrupt or
// empty value reads as logged out.
func (m *Mirror) Load() (types.SessionIdentity, bool) {
	data, ok, err := m.store.Get(types.UserKey)
	if err != nil || !ok {
		return types.SessionIdentity{}, false
	}
	return Decode(data)
}

// Decode parses a stored identity with the same rules as Load.
func Decode(data []byte) (types.SessionIdentity, bool) {
	var identity *types.SessionIdentity
	if err := json.Unmarshal(data, &identity); err != nil || identity == nil || identity.IsZero() {
		return types.SessionIdentity{}, false
	}
	return *identity, true
}

// Save writes identity and marks the mirror trusted.
func (m *Mirror) Save(identity types.SessionIdentity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := m.store.Set(types.UserKey, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.SetTrusted(true)
	return nil
}

// Clear removes the identity and marks the mirror untrusted.
func (m *Mirror) Clear() error {
	m.SetTrusted(false)
	if err := m.store.Remove(types.UserKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// SetTrusted records whether the server confirmed the identity.
func (m *Mirror) SetTrusted(trusted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trusted = trusted
}

// Trusted reports whether the mirrored identity is server-confirmed.
func (m *Mirror) Trusted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trusted
}
