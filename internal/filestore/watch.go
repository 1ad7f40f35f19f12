package filestore

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

func (b *Backend) watch(watcher *fsnotify.Watcher, interval time.Duration) {
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
			if key := keyFromFile(ev.Name); key != "" {
				b.checkKey(key)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("store watcher error", "backend", types.BackendFile, "error", err)
		case <-ticker.C:
			b.rescan()
		}
	}
}

// checkKey compares the file for key against the last known content and
// publishes a change when they differ.
func (b *Backend) checkKey(key string) {
	b.knownMu.Lock()
	defer b.knownMu.Unlock()

	data, err := os.ReadFile(b.path(key))
	present := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("read key file", "backend", types.BackendFile, "key", key, "error", err)
		return
	}

	prev, known := b.known[key]
	switch {
	case present && (!known || prev != string(data)):
		b.known[key] = string(data)
		b.hub.Publish(types.Change{Key: key})
	case !present && known:
		delete(b.known, key)
		b.hub.Publish(types.Change{Key: key, Removed: true})
	}
}

// rescan checks every key on disk and every key previously known, catching
// changes whose notifications were missed.
func (b *Backend) rescan() {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		slog.Warn("rescan data dir", "backend", types.BackendFile, "error", err)
		return
	}

	keys := make(map[string]bool)
	for _, entry := range entries {
		if key := keyFromFile(entry.Name()); key != "" && !entry.IsDir() {
			keys[key] = true
		}
	}
	b.knownMu.Lock()
	for key := range b.known {
		keys[key] = true
	}
	b.knownMu.Unlock()

	for key := range keys {
		b.checkKey(key)
	}
}
