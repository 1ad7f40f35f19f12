package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// watch polls the change log whenever the database files change on disk,
// and on every poll interval in case a notification was missed.
func (b *Backend) watch(db *sql.DB, watcher *fsnotify.Watcher, interval time.Duration) {
	defer b.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case <-b.stop:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !isDatabaseFile(ev.Name) || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			b.pollLogged(db)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("store watcher error", "backend", types.BackendSQLite, "error", err)
		case <-ticker.C:
			b.pollLogged(db)
		}
	}
}

func (b *Backend) pollLogged(db *sql.DB) {
	if _, err := b.pollChanges(db); err != nil {
		slog.Warn("poll change log", "backend", types.BackendSQLite, "error", err)
	}
}

// pollChanges publishes every change logged by another context since the
// last poll and returns how many were published.
func (b *Backend) pollChanges(db *sql.DB) (int, error) {
	b.watchMu.Lock()
	defer b.watchMu.Unlock()

	rows, err := db.Query(
		"SELECT seq, key, context_id, removed FROM changes WHERE seq > ? ORDER BY seq",
		b.lastSeq,
	)
	if err != nil {
		return 0, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var changes []types.Change
	for rows.Next() {
		var (
			seq       int64
			key       string
			contextID string
			removed   int
		)
		if err := rows.Scan(&seq, &key, &contextID, &removed); err != nil {
			return 0, fmt.Errorf("scan change: %w", err)
		}
		b.lastSeq = seq
		if contextID == b.id {
			continue
		}
		changes = append(changes, types.Change{Key: key, ContextID: contextID, Removed: removed != 0})
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate changes: %w", err)
	}

	for _, c := range changes {
		b.hub.Publish(c)
	}
	return len(changes), nil
}

// isDatabaseFile reports whether name is the database or one of its WAL/SHM
// companions.
func isDatabaseFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), DBFileName)
}
