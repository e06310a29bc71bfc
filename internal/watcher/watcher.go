// Package watcher triggers incremental reindexing when the codebase
// changes on disk. Events are debounced so bursts (saves, branch switches)
// collapse into one reindex.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tan-yong-sheng/code-context/internal/ignore"
)

// DefaultDebounce is the quiet period before a change burst triggers the
// callback.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a codebase tree recursively.
type Watcher struct {
	root     string
	ignore   *ignore.Engine
	debounce time.Duration
	onChange func(ctx context.Context)

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a watcher for root. onChange runs after each debounced burst.
func New(root string, engine *ignore.Engine, debounce time.Duration, onChange func(ctx context.Context)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		ignore:   engine,
		debounce: debounce,
		onChange: onChange,
	}
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addRecursive(fsw, w.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)

	info, statErr := os.Stat(event.Name)
	isDir := statErr == nil && info.IsDir()

	if !w.ignore.Include(relPath, isDir) {
		return
	}

	// New directories must be added to the watch before their contents
	// produce events.
	if isDir && event.Op&fsnotify.Create != 0 {
		if err := w.addRecursive(fsw, event.Name); err != nil {
			slog.Warn("failed to watch new directory",
				slog.String("path", event.Name),
				slog.String("error", err.Error()))
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.onChange(ctx)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// addRecursive registers dir and every included subdirectory.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if relPath != "." && !w.ignore.Include(relPath, true) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			slog.Debug("failed to watch directory", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}
