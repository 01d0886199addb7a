// Package watcher notices when state files in the data directory are edited
// by another process, so a long-running engine can reload instead of
// overwriting those edits on its next save.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 500 * time.Millisecond

// Config configures the file watcher.
type Config struct {
	// Dir is the directory holding the watched files.
	Dir string
	// Files are the base names to watch inside Dir.
	Files []string
	// OnChange is called with the base name of a file whose content changed
	// or that was removed.
	OnChange func(name string)
	Logger   *slog.Logger
	Debounce time.Duration
}

// Watcher reports external edits to a fixed set of files.
type Watcher struct {
	dir       string
	files     map[string]bool
	onChange  func(name string)
	logger    *slog.Logger
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer

	// hashes holds the last known content hash per path. Writes made by this
	// process are recorded here first so they never look external.
	hashes   map[string]string
	hashesMu sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher. It does not watch anything until Run.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if cfg.OnChange == nil {
		return nil, errors.New("change callback is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		dir:       cfg.Dir,
		files:     make(map[string]bool, len(cfg.Files)),
		onChange:  cfg.OnChange,
		logger:    logger,
		fsWatcher: fsWatcher,
		hashes:    make(map[string]string),
		done:      make(chan struct{}),
	}
	for _, f := range cfg.Files {
		w.files[f] = true
	}
	w.debouncer = NewDebouncer(debounce, w.handleDebounced)
	w.debouncer.SetDeleteCallback(w.handleDeleted)
	return w, nil
}

// Record notes data as the current content of path. Call it before writing
// so the resulting fsnotify event is recognised as this process's own.
func (w *Watcher) Record(path string, data []byte) {
	sum := sha256.Sum256(data)
	w.hashesMu.Lock()
	w.hashes[path] = hex.EncodeToString(sum[:])
	w.hashesMu.Unlock()
}

// Run watches until ctx is cancelled. Existing files are hashed first so
// only later edits are reported.
func (w *Watcher) Run(ctx context.Context) error {
	for name := range w.files {
		path := filepath.Join(w.dir, name)
		if _, err := w.hasContentChanged(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.logger.Debug("initial hash failed", "path", path, "error", err)
		}
	}
	// Atomic saves replace the file, so the directory is watched, not the files.
	if err := w.fsWatcher.Add(w.dir); err != nil {
		_ = w.Stop()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Debug("file watcher started", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return w.Stop()
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.debouncer.Stop()
		if cerr := w.fsWatcher.Close(); cerr != nil {
			err = fmt.Errorf("close fsnotify watcher: %w", cerr)
		}
		w.logger.Debug("file watcher stopped")
	})
	return err
}

// Done returns a channel that's closed when the watcher stops.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name
	if !w.files[filepath.Base(path)] {
		return
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.debouncer.TriggerDelete(path)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.debouncer.CancelDelete(path)
		w.debouncer.Trigger(path)
	}
}

func (w *Watcher) handleDebounced(path string) {
	changed, err := w.hasContentChanged(path)
	if err != nil {
		w.logger.Debug("hash changed file", "path", path, "error", err)
		return
	}
	if !changed {
		return
	}
	w.logger.Info("state file changed on disk", "file", filepath.Base(path))
	w.onChange(filepath.Base(path))
}

func (w *Watcher) handleDeleted(path string) {
	w.hashesMu.Lock()
	_, known := w.hashes[path]
	delete(w.hashes, path)
	w.hashesMu.Unlock()
	if !known {
		return
	}
	w.logger.Info("state file removed", "file", filepath.Base(path))
	w.onChange(filepath.Base(path))
}

// hasContentChanged hashes path and reports whether it differs from the
// last known content, updating the stored hash.
func (w *Watcher) hasContentChanged(path string) (bool, error) {
	newHash, err := hashFile(path)
	if err != nil {
		return false, err
	}
	w.hashesMu.Lock()
	defer w.hashesMu.Unlock()
	if old, ok := w.hashes[path]; ok && old == newHash {
		return false, nil
	}
	w.hashes[path] = newHash
	return true, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
