package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lexandro/ferret/ignore"
)

// DefaultQuietPeriod is how long the tree must stay unchanged before a batch is emitted.
const DefaultQuietPeriod = 500 * time.Millisecond

// IgnoreChecker decides which paths are worth reporting.
type IgnoreChecker interface {
	ShouldIgnoreDir(absolutePath string) bool
	ShouldIgnore(absolutePath string) bool
}

// Watcher watches a directory tree recursively and emits debounced batches of changes.
type Watcher struct {
	fsWatcher     *fsnotify.Watcher
	debouncer     *Debouncer
	ignoreChecker IgnoreChecker
	rootDir       string
	logger        *slog.Logger
}

// New registers every non-ignored directory under rootDir.
// quietPeriod <= 0 selects DefaultQuietPeriod.
func New(rootDir string, ignoreChecker IgnoreChecker, quietPeriod time.Duration, logger *slog.Logger) (*Watcher, error) {
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher:     fsWatcher,
		debouncer:     NewDebouncer(quietPeriod),
		ignoreChecker: ignoreChecker,
		rootDir:       rootDir,
		logger:        logger,
	}

	err = filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != rootDir && ignoreChecker.ShouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		w.add(path)
		return nil
	})
	if err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watching %s: %w", rootDir, err)
	}
	return w, nil
}

// Events returns the channel of debounced change batches.
func (w *Watcher) Events() <-chan []DebouncedEvent {
	return w.debouncer.Output()
}

// Start forwards fsnotify events to the debouncer until ctx is done or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	defer w.debouncer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.ignoreChecker.ShouldIgnoreDir(path) {
				w.add(path)
				// A directory moved into the tree arrives with its files already present.
				w.debouncer.Add(path, OpCreate)
			}
			return
		}
	}

	// Ignore-file edits change what the next run enumerates, even when the
	// ignore rules themselves exclude those files.
	if !ignore.IsIgnoreFile(filepath.Base(path)) && w.ignoreChecker.ShouldIgnore(path) {
		return
	}

	op, ok := opFor(event)
	if !ok {
		return
	}
	w.debouncer.Add(path, op)
}

func (w *Watcher) add(dir string) {
	if err := w.fsWatcher.Add(dir); err != nil {
		w.logger.Warn("failed to watch directory", "path", dir, "error", err)
	}
}

func opFor(event fsnotify.Event) (EventOp, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return OpCreate, true
	case event.Has(fsnotify.Write):
		return OpWrite, true
	case event.Has(fsnotify.Remove):
		return OpRemove, true
	case event.Has(fsnotify.Rename):
		return OpRename, true
	}
	return 0, false
}

// Close stops watching and releases the underlying handles.
func (w *Watcher) Close() error {
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}
