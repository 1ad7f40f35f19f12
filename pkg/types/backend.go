package types

// Backend is a Store with an attach/detach lifecycle. Callers attach to a
// backend, use it as a Store, and detach when done.
type Backend interface {
	Store

	// Attach connects the backend to the storage described by config.
	// Creates DataDir if it does not exist. Returns ErrAlreadyAttached if
	// called while already attached.
	Attach(config Config) error

	// Detach releases backend resources and cancels every subscription.
	// Idempotent: multiple calls succeed. After Detach, store operations
	// return ErrStoreDetached.
	Detach() error
}
