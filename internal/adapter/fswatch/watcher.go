// Package fswatch reloads the trace file when it changes on disk.
package fswatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor or recorder emits
// for a single save.
const DefaultDebounce = 200 * time.Millisecond

// LoadFunc receives the new file content. A returned error is logged; the
// watcher keeps running and the caller keeps its previous state.
type LoadFunc func(ctx context.Context, data []byte, source string) error

// Watcher watches one file. It watches the parent directory so that atomic
// replace-by-rename saves are seen as well as in-place writes.
type Watcher struct {
	path     string
	load     LoadFunc
	debounce time.Duration
	fw       *fsnotify.Watcher
}

// New creates a watcher for path.
func New(path string, load LoadFunc) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("fswatch: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fswatch: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("fswatch: watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, load: load, debounce: DefaultDebounce, fw: fw}, nil
}

// SetDebounce changes the quiet period before a reload.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Run dispatches reloads until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	slog.Info("watching trace file", "path", w.path)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				slog.Debug("trace file changed", "path", w.path, "op", event.Op.String())
				timer.Reset(w.debounce)
			} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				slog.Info("trace file removed, keeping current session", "path", w.path)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("trace file watch error", "path", w.path, "error", err)

		case <-timer.C:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("trace file read failed", "path", w.path, "error", err)
		}
		return
	}
	if err := w.load(ctx, data, filepath.Base(w.path)); err != nil {
		slog.Warn("trace reload rejected, keeping current session", "path", w.path, "error", err)
		return
	}
	slog.Info("trace reloaded", "path", w.path, "bytes", len(data))
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
