package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the configuration file for changes and triggers
// reloads. It implements debouncing to prevent reload storms when
// editors write the file in several steps.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	path     string
	debounce *Debouncer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	stopOnce  sync.Once
	doneOnce  sync.Once
	closeOnce sync.Once
}

// DefaultDebounceInterval is the quiet period before a reload fires.
const DefaultDebounceInterval = 250 * time.Millisecond

// NewWatcher creates a watcher for the given configuration file.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:  watcher,
		logger:   logger,
		path:     filepath.Clean(path),
		debounce: NewDebouncer(DefaultDebounceInterval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks processing file events until the context is cancelled or
// Stop is called. onReload is invoked after each debounced change; a
// reload error is logged and watching continues.
//
// The parent directory is watched rather than the file itself so that
// atomic saves (write to temp, rename over the original) keep the watch
// alive.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	// The watcher is single-use: when Watch returns, for any reason, the
	// fsnotify handle is released.
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.doneOnce.Do(func() { close(w.doneCh) })
		if err := w.close(); err != nil {
			w.logger.Warn("failed to close fsnotify watcher", "error", err)
		}
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("configuration watcher started",
		"path", w.path,
		"debounce_ms", DefaultDebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("configuration watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("configuration watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("configuration file event",
				"path", event.Name,
				"op", event.Op.String(),
			)

			w.debounce.Trigger(func() {
				w.logger.Info("reloading configuration", "path", w.path)
				if err := onReload(); err != nil {
					w.logger.Error("configuration reload failed", "error", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("configuration watcher error", "error", err)
		}
	}
}

// Stop stops the watcher, waits for Watch to return, and releases the
// fsnotify handle. Safe to call more than once, and after Watch has
// already returned on its own.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.stopCh) })
	if running {
		<-w.doneCh
	}
	return w.close()
}

// close releases the debouncer and the fsnotify handle exactly once.
func (w *Watcher) close() error {
	var err error
	w.closeOnce.Do(func() {
		w.debounce.Stop()
		if closeErr := w.watcher.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close watcher: %w", closeErr)
		}
	})
	return err
}

// shouldProcessEvent keeps only write/create/rename events that target
// the configuration file.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

// Debouncer collects rapid events and invokes the callback only after a
// quiet period.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewDebouncer creates a debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Trigger records an event. The callback fires after the interval
// elapses with no further triggers.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
			return
		default:
			d.mu.Lock()
			cb := d.callback
			d.mu.Unlock()
			if cb != nil {
				cb()
			}
		}
	})
}

// Stop cancels any pending callback. Safe to call more than once.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
