package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before reloading.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the endpoint file when it changes and publishes the new
// snapshot through a Holder. A file that fails to compile leaves the
// previous snapshot in place.
type Watcher struct {
	path     string
	holder   *Holder
	log      *zap.Logger
	debounce time.Duration
	onReload func(e *Engine, warnings []Warning, err error)
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithReloadHook registers a callback invoked after every reload attempt.
func WithReloadHook(fn func(e *Engine, warnings []Warning, err error)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher creates a watcher for the endpoint file at path.
func NewWatcher(path string, holder *Holder, log *zap.Logger, opts ...WatcherOption) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		path:     path,
		holder:   holder,
		log:      log,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file so editors that replace the file are followed.
func (w *Watcher) Run(ctx context.Context) error {
	target, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", w.path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	w.log.Info("Watching endpoint configuration", zap.String("path", target))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.Reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Endpoint configuration watcher error", zap.Error(err))
		}
	}
}

// Reload compiles the file once and publishes it on success.
func (w *Watcher) Reload() {
	e, warnings, err := Load(w.path)
	if err != nil {
		w.log.Error("Endpoint configuration reload failed, keeping previous snapshot", zap.Error(err))
	} else {
		w.holder.Store(e)
		for _, warning := range warnings {
			w.log.Warn("Endpoint configuration warning", zap.String("warning", warning.String()))
		}
		w.log.Info("Endpoint configuration reloaded",
			zap.String("path", w.path),
			zap.Int("endpoints", len(e.IDs())),
			zap.Time("loaded_at", e.LoadedAt()),
		)
	}
	if w.onReload != nil {
		w.onReload(e, warnings, err)
	}
}
