// Package watch reruns a callback after a plugin source tree stops changing.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/plugsmith/internal/logfields"
)

// DefaultDebounce is the quiet period before the callback runs.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a directory tree. fsnotify is not recursive, so every
// subdirectory is added individually, including ones created later.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(context.Context) error
}

// New prepares a watcher for root. onChange runs once per burst of changes.
func New(root string, debounce time.Duration, onChange func(context.Context) error) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watch: nil change handler")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{root: abs, watcher: fw, debounce: debounce, onChange: onChange}
	if err := w.addTree(abs); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is canceled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}()
	slog.Info("Watching plugin sources", logfields.Path(w.root))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ignored(event.Name) {
				continue
			}
			slog.Debug("Source change detected", logfields.File(event.Name), logfields.Op(event.Op.String()))
			if event.Has(fsnotify.Create) {
				if err := w.addTree(event.Name); err != nil {
					slog.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
				}
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", logfields.Error(err))
		case <-timer.C:
			if err := w.onChange(ctx); err != nil {
				slog.Error("Change handler failed", logfields.Path(w.root), logfields.Error(err))
			}
		}
	}
}

// addTree watches path and its subdirectories. Plain files are ignored.
func (w *Watcher) addTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && ignored(p) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// ignored filters VCS metadata, hidden files and editor swap files.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp")
}
