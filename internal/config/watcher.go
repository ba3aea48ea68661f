package config

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omarluq/auth-relay/internal/logging"
)

// DefaultDebounceDelay coalesces the burst of events editors emit on save.
const DefaultDebounceDelay = 100 * time.Millisecond

// ReloadCallback receives each config that loaded and validated cleanly.
// A returned error is logged; later callbacks still run.
type ReloadCallback func(*Config) error

// ErrWatcherClosed is returned when Close is called twice.
var ErrWatcherClosed = errors.New("config: watcher already closed")

// Watcher reloads a config file when it changes on disk.
// The parent directory is watched so rename-over-target saves are seen.
// A file that fails to parse or validate is logged and ignored; the
// previous config stays active.
type Watcher struct {
	fs        *fsnotify.Watcher
	logger    *logging.Logger
	timer     *time.Timer
	stop      chan struct{}
	path      string
	target    string
	callbacks []ReloadCallback
	delay     time.Duration
	mu        sync.Mutex
	closed    bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay overrides DefaultDebounceDelay.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.delay = d
	}
}

// WithWatcherLogger routes reload logs through logger.
func WithWatcherLogger(logger *logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher starts watching the directory that holds path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:     fsWatcher,
		logger: logging.Nop(),
		stop:   make(chan struct{}),
		path:   absPath,
		target: filepath.Base(absPath),
		delay:  DefaultDebounceDelay,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// SetLogger routes reload logs through logger. Call it before Watch.
func (w *Watcher) SetLogger(logger *logging.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// OnReload registers cb. Callbacks run in registration order.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Watch processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case <-w.stop:
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("config watcher error", err, logging.Fields{"path": w.path})
		}
	}
}

// Chmod is ignored; indexers and antivirus tools touch it constantly.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != w.target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	cfg, err := LoadAndValidate(w.path)
	if err != nil {
		w.logger.Error("config reload rejected, keeping previous config", err, logging.Fields{"path": w.path})
		return
	}

	w.logger.Info("config file reloaded", logging.Fields{"path": w.path})
	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			w.logger.Error("config reload callback error", err, nil)
		}
	}
}

// Close stops the watcher and cancels any pending reload.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.stop)

	return w.fs.Close()
}
