// Package memstore implements an in-process Persistent Local Store. Every
// Backend attached to the same Origin sees the same data, and each is told
// about writes made through the others.
package memstore

import "sync"

// Origin is the storage shared by every context attached to it.
type Origin struct {
	mu       sync.RWMutex
	data     map[string][]byte
	contexts map[string]*Backend
}

// NewOrigin creates an empty origin.
func NewOrigin() *Origin {
	return &Origin{
		data:     make(map[string][]byte),
		contexts: make(map[string]*Backend),
	}
}

var (
	defaultOrigin     *Origin
	defaultOriginOnce sync.Once
)

// DefaultOrigin returns the process-wide origin used when a Backend is
// created without one.
func DefaultOrigin() *Origin {
	defaultOriginOnce.Do(func() { defaultOrigin = NewOrigin() })
	return defaultOrigin
}

// Contexts returns the number of attached contexts.
func (o *Origin) Contexts() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.contexts)
}

func (o *Origin) get(key string) ([]byte, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.data[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(v), true
}

// write applies a set (value != nil) or removal and returns the contexts
// that must be notified.
func (o *Origin) write(key string, value []byte, remove bool, writer string) []*Backend {
	o.mu.Lock()
	defer o.mu.Unlock()

	if remove {
		delete(o.data, key)
	} else {
		o.data[key] = cloneBytes(value)
	}

	peers := make([]*Backend, 0, len(o.contexts))
	for id, b := range o.contexts {
		if id != writer {
			peers = append(peers, b)
		}
	}
	return peers
}

func (o *Origin) register(b *Backend) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.contexts[b.id] = b
}

func (o *Origin) unregister(b *Backend) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.contexts, b.id)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
