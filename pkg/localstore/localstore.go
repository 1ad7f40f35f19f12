// Package localstore provides the public API for creating Persistent Local
// Store backends. It exposes factory functions while keeping the backend
// implementations internal.
package localstore

import (
	"fmt"

	"github.com/mesh-intelligence/storefront/internal/filestore"
	"github.com/mesh-intelligence/storefront/internal/memstore"
	"github.com/mesh-intelligence/storefront/internal/sqlite"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

// NewBackend creates a detached backend for the named kind. Memory backends
// created here share the process-wide default origin.
//
// Example:
//
//	backend, err := localstore.NewBackend(types.BackendSQLite)
//	err = backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".storefront-db",
//	})
//	defer backend.Detach()
func NewBackend(kind string) (types.Backend, error) {
	switch kind {
	case types.BackendMemory:
		return memstore.NewBackend(nil), nil
	case types.BackendSQLite:
		return sqlite.NewBackend(), nil
	case types.BackendFile:
		return filestore.NewBackend(), nil
	case "":
		return nil, types.ErrBackendEmpty
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, kind)
	}
}

// Open creates the backend named by config.Backend and attaches it. The
// caller owns the returned backend and must Detach it.
func Open(config types.Config) (types.Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	backend, err := NewBackend(config.Backend)
	if err != nil {
		return nil, err
	}
	if err := backend.Attach(config); err != nil {
		return nil, fmt.Errorf("attach %s backend: %w", config.Backend, err)
	}
	return backend, nil
}
