package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a configuration file and notifies typed handlers when
// it changes. The file is re-loaded fresh on every change so handlers
// never see stale data. Used to flip the runtime toggles (verbose
// logging, status images, forced EOTF/quantization) without restarting.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	loader   func(path string) (T, error)
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers []func(T)

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher over path. loader is invoked on each
// change.
func NewWatcher[T any](path string, loader func(path string) (T, error), logger *slog.Logger) *Watcher[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher[T]{
		path:     path,
		debounce: 1500 * time.Millisecond,
		loader:   loader,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnReload registers a handler called with each fresh load.
func (w *Watcher[T]) OnReload(handler func(T)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching.
func (w *Watcher[T]) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.path); err != nil {
		fsw.Close()
		return err
	}
	w.watcher = fsw
	w.logger.Info("config watcher started", "path", w.path)
	go w.watch()
	return nil
}

// Stop stops watching.
func (w *Watcher[T]) Stop() error {
	w.cancel()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher[T]) watch() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Writes are the common case; editors that replace the
			// file show up as creates.
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			}

		case <-timerC:
			w.reload()
			timerC = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher[T]) reload() {
	loaded, err := w.loader(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "error", err)
		return
	}

	w.mu.RLock()
	handlers := make([]func(T), len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	w.logger.Info("config file changed, applying")
	for _, h := range handlers {
		h(loaded)
	}
}
