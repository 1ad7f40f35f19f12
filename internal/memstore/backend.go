package memstore

import (
	"sync"

	"github.com/mesh-intelligence/storefront/internal/broadcast"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

// Backend is one context attached to an Origin.
type Backend struct {
	mu       sync.RWMutex
	origin   *Origin
	attached bool
	id       string
	hub      *broadcast.Hub
}

// NewBackend creates a context for origin, or for DefaultOrigin when origin
// is nil. The backend is not attached; call Attach to use it.
func NewBackend(origin *Origin) *Backend {
	if origin == nil {
		origin = DefaultOrigin()
	}
	return &Backend{origin: origin}
}

// Attach registers the context with its origin. DataDir is ignored.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	b.id = broadcast.NewContextID()
	b.hub = broadcast.NewHub()
	b.origin.register(b)
	b.attached = true
	return nil
}

// Detach unregisters the context and cancels its subscriptions. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.origin.unregister(b)
	b.hub.Close()
	b.attached = false
	return nil
}

// ContextID returns the ID assigned at Attach.
func (b *Backend) ContextID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

// Get returns a copy of the value at key.
func (b *Backend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, false, types.ErrStoreDetached
	}
	if err := types.ValidateKey(key); err != nil {
		return nil, false, err
	}
	v, ok := b.origin.get(key)
	return v, ok, nil
}

// Set stores a copy of value and notifies every other context.
func (b *Backend) Set(key string, value []byte) error {
	return b.write(key, value, false)
}

// Remove deletes key and notifies every other context.
func (b *Backend) Remove(key string) error {
	return b.write(key, nil, true)
}

func (b *Backend) write(key string, value []byte, remove bool) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	if err := types.ValidateKey(key); err != nil {
		return err
	}

	peers := b.origin.write(key, value, remove, b.id)
	change := types.Change{Key: key, ContextID: b.id, Removed: remove}
	for _, peer := range peers {
		peer.hub.Publish(change)
	}
	return nil
}

// Subscribe registers fn for writes made by other contexts.
func (b *Backend) Subscribe(fn func(types.Change)) (cancel func()) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return func() {}
	}
	return b.hub.Subscribe(fn)
}
