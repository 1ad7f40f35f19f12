package types

import (
	"errors"
	"strings"
)

// Store is origin-scoped durable key-value storage shared by every context
// attached to the same origin. Reads and writes are synchronous and atomic
// from the calling context's point of view; there is no read-modify-write
// transaction spanning contexts (last writer wins).
type Store interface {
	// Get returns the raw value stored at key. The boolean is false when the
	// key is absent. Values are returned as stored; callers decide how to
	// treat content they cannot parse.
	Get(key string) ([]byte, bool, error)

	// Set stores value at key, replacing any previous value.
	Set(key string, value []byte) error

	// Remove deletes key. Removing an absent key succeeds.
	Remove(key string) error

	// Subscribe registers fn to be called for every write made by another
	// context. Writes made through this context are never reported to it.
	// The returned function cancels the subscription and is safe to call
	// more than once.
	Subscribe(fn func(Change)) (cancel func())

	// ContextID identifies this context among all contexts of the origin.
	ContextID() string
}

// Change describes a write observed from another context.
type Change struct {
	// Key is the key that was written or removed.
	Key string

	// ContextID is the writer's context ID, when the backend knows it.
	ContextID string

	// Removed is true when the key was deleted rather than set.
	Removed bool
}

// Store operation errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrInvalidKey      = errors.New("invalid store key")
)

// ValidateKey checks that key is usable by every backend: non-empty, no path
// separators, and not starting with a dot.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return ErrInvalidKey
	}
	return nil
}
