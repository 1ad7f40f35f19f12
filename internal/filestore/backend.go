// Package filestore implements a Persistent Local Store that keeps one JSON
// file per key in the data directory. Writes are atomic renames, so any
// number of processes may share the directory. Changes made by other
// processes are detected with fsnotify and a periodic rescan.
//
// Detection compares file contents, so subscribers learn that a key now
// holds a different value rather than seeing every write. Writes that
// leave the content unchanged, or that change it and change it back
// before the file is next checked, produce no notification.
package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mesh-intelligence/storefront/internal/broadcast"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

// fileExt is appended to a key to form its file name.
const fileExt = ".json"

// Backend implements types.Backend on a directory of files.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	dir      string
	id       string
	hub      *broadcast.Hub

	// known holds the last content this context wrote or observed per key;
	// a key missing from known is absent. Guarded by knownMu.
	knownMu sync.Mutex
	known   map[string]string

	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewBackend creates a new file backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach creates DataDir if needed, records the current content of every
// key so that only later changes are reported, and starts the watcher.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dir := config.DataDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	known, err := scanDir(dir)
	if err != nil {
		return fmt.Errorf("scan data dir: %w", err)
	}

	b.dir = dir
	b.id = broadcast.NewContextID()
	b.hub = broadcast.NewHub()
	b.known = known
	b.stop = make(chan struct{})

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = watcher.Add(dir); err != nil {
			watcher.Close()
			watcher = nil
		}
	}
	if err != nil {
		slog.Warn("store watcher unavailable, polling only",
			"backend", types.BackendFile,
			"data_dir", dir,
			"error", err,
		)
	}
	b.watcher = watcher

	b.wg.Add(1)
	go b.watch(watcher, config.GetPollInterval())

	b.attached = true
	slog.Debug("store attached", "backend", types.BackendFile, "data_dir", dir, "context_id", b.id)
	return nil
}

// Detach stops the watcher and cancels subscriptions. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	close(b.stop)
	b.wg.Wait()
	if b.watcher != nil {
		b.watcher.Close()
		b.watcher = nil
	}
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

// Get reads the file for key.
func (b *Backend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, false, types.ErrStoreDetached
	}
	if err := types.ValidateKey(key); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return data, true, nil
}

// Set atomically replaces the file for key.
func (b *Backend) Set(key string, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	if err := types.ValidateKey(key); err != nil {
		return err
	}

	b.knownMu.Lock()
	defer b.knownMu.Unlock()

	if err := writeAtomic(b.path(key), value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	b.known[key] = string(value)
	return nil
}

// Remove deletes the file for key. Removing an absent key succeeds.
func (b *Backend) Remove(key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	if err := types.ValidateKey(key); err != nil {
		return err
	}

	b.knownMu.Lock()
	defer b.knownMu.Unlock()

	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	delete(b.known, key)
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

func (b *Backend) path(key string) string {
	return filepath.Join(b.dir, key+fileExt)
}

// keyFromFile returns the key stored in the file name, or "" for files the
// store does not own (temp files, other extensions).
func keyFromFile(name string) string {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileExt) {
		return ""
	}
	return strings.TrimSuffix(base, fileExt)
}

// scanDir reads the content of every key file in dir.
func scanDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key := keyFromFile(entry.Name())
		if key == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[key] = string(data)
	}
	return out, nil
}
