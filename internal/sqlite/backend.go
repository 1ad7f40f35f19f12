// Package sqlite implements the SQLite Persistent Local Store. Every process
// that attaches to the same data directory shares one database file; each
// attachment is a separate context. Writes append to a change log, and a
// watcher reports other contexts' entries to local subscribers.
package sqlite

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/storefront/internal/broadcast"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// DBFileName is the database file created inside DataDir.
const DBFileName = "storefront.db"

// changeLogLimit is the number of change rows retained after each write.
const changeLogLimit = 1000

// Backend implements types.Backend on a SQLite database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	id       string
	hub      *broadcast.Hub

	// Change watcher state. lastSeq is the highest change seq this context
	// has observed and is guarded by watchMu.
	watchMu sync.Mutex
	lastSeq int64
	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens (or creates) the database in DataDir, applies the schema,
// and starts watching for writes from other contexts. Only changes logged
// after Attach are reported.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	// Create DataDir if needed
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer at a time; a single connection keeps this
	// context's reads and writes serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("apply schema: %w", err)
	}

	var lastSeq int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM changes").Scan(&lastSeq); err != nil {
		db.Close()
		return fmt.Errorf("read change log head: %w", err)
	}

	b.db = db
	b.config = config
	b.config.DataDir = dataDir
	b.id = broadcast.NewContextID()
	b.hub = broadcast.NewHub()
	b.lastSeq = lastSeq
	b.stop = make(chan struct{})

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = watcher.Add(dataDir); err != nil {
			watcher.Close()
			watcher = nil
		}
	}
	if err != nil {
		// Polling alone still delivers every change, only later.
		slog.Warn("store watcher unavailable, polling only",
			"backend", types.BackendSQLite,
			"data_dir", dataDir,
			"error", err,
		)
	}
	b.watcher = watcher

	b.wg.Add(1)
	go b.watch(db, watcher, config.GetPollInterval())

	b.attached = true
	slog.Debug("store attached",
		"backend", types.BackendSQLite,
		"path", dbPath,
		"context_id", b.id,
	)
	return nil
}

// Detach stops the watcher, cancels subscriptions, and closes the database.
// After Detach, all operations return ErrStoreDetached.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil // idempotent
	}

	close(b.stop)
	b.wg.Wait()
	if b.watcher != nil {
		b.watcher.Close()
		b.watcher = nil
	}
	b.hub.Close()

	b.attached = false
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		if err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}

// ContextID returns the ID assigned at Attach.
func (b *Backend) ContextID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

// Get returns the value stored at key.
func (b *Backend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, false, types.ErrStoreDetached
	}
	if err := types.ValidateKey(key); err != nil {
		return nil, false, err
	}

	var value []byte
	err := b.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value at key and logs the change in the same transaction.
func (b *Backend) Set(key string, value []byte) error {
	return b.write(key, value, false)
}

// Remove deletes key and logs the change. Removing an absent key succeeds
// and is still logged.
func (b *Backend) Remove(key string) error {
	return b.write(key, nil, true)
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

func (b *Backend) write(key string, value []byte, remove bool) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	if err := types.ValidateKey(key); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback()

	if remove {
		if _, err := tx.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	} else {
		if value == nil {
			value = []byte{}
		}
		_, err := tx.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now)
		if err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}

	removed := 0
	if remove {
		removed = 1
	}
	if _, err := tx.Exec(
		"INSERT INTO changes (key, context_id, removed, changed_at) VALUES (?, ?, ?, ?)",
		key, b.id, removed, now,
	); err != nil {
		return fmt.Errorf("log change %s: %w", key, err)
	}
	if _, err := tx.Exec(
		"DELETE FROM changes WHERE seq <= (SELECT MAX(seq) FROM changes) - ?",
		changeLogLimit,
	); err != nil {
		return fmt.Errorf("prune change log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
