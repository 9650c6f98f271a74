package prefs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// DefaultDebounce is the quiet period before a file change is acted on.
const DefaultDebounce = 200 * time.Millisecond

// Watcher notices preference changes written by other processes.
//
// It watches the directory holding the database file, since SQLite in WAL mode
// writes to sibling -wal and -shm files, and re-reads one boolean key after each
// burst of writes.
type Watcher struct {
	store    *Store
	dbPath   string
	key      string
	debounce time.Duration
	logger   *telemetry.Logger

	mu      sync.Mutex
	last    bool
	watcher *fsnotify.Watcher
	timer   *time.Timer
}

// NewWatcher creates a watcher for key stored in the database at dbPath.
func NewWatcher(store *Store, dbPath, key string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		store:    store,
		dbPath:   dbPath,
		key:      key,
		debounce: debounce,
		logger:   store.logger.WithField("watch", key),
	}
}

// Watch starts watching in the background and calls onChange with the new value
// each time the stored value differs from the last one seen. It stops when ctx is
// done or Close is called.
func (w *Watcher) Watch(ctx context.Context, onChange func(bool)) error {
	initial, err := w.store.Bool(ctx, w.key, false)
	if err != nil {
		return fmt.Errorf("failed to read initial preference: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.dbPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.dbPath), err)
	}

	w.mu.Lock()
	w.last = initial
	w.watcher = watcher
	w.mu.Unlock()

	go w.processEvents(ctx, watcher, onChange)

	w.logger.WithField("path", w.dbPath).Debug("Started watching preferences")
	return nil
}

// Last returns the last value seen.
func (w *Watcher) Last() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}

func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, onChange func(bool)) {
	base := filepath.Base(w.dbPath)

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}

			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.debounce, func() { w.check(ctx, onChange) })
			w.mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Preference watcher error")
		}
	}
}

// check re-reads the preference and reports a change.
func (w *Watcher) check(ctx context.Context, onChange func(bool)) {
	if ctx.Err() != nil {
		return
	}

	v, err := w.store.Bool(ctx, w.key, false)
	if err != nil {
		w.logger.WithError(err).Warn("Failed to re-read preference")
		return
	}

	w.mu.Lock()
	changed := v != w.last
	w.last = v
	w.mu.Unlock()

	if changed {
		w.logger.WithField("value", v).Info("Preference changed externally")
		onChange(v)
	}
}
