package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a config file for changes using polling.
// It checks the file's modification time and size at a configurable interval.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	onChange func()
	stop     chan struct{}
	once     sync.Once
	lastMod  time.Time
	lastSize int64
}

// NewWatcher creates a config file watcher that polls for changes.
func NewWatcher(path string, interval time.Duration, logger *slog.Logger, onChange func()) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		interval: interval,
		logger:   logger.With("component", "config-watcher"),
		onChange: onChange,
		stop:     make(chan struct{}),
	}
}

// Start begins polling for file changes in a goroutine.
func (w *Watcher) Start() {
	// Record initial state
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
		w.lastSize = info.Size()
	}

	go w.poll()
	w.logger.Info("config watcher started", "path", w.path, "interval", w.interval)
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		w.logger.Info("config watcher stopped")
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn("cannot stat config file", "path", w.path, "error", err)
		return
	}

	// Coarse mtime resolution can hide a rewrite; a size change still counts.
	modTime := info.ModTime()
	if modTime.After(w.lastMod) || info.Size() != w.lastSize {
		w.logger.Info("config file changed", "path", w.path, "modTime", modTime)
		w.lastMod = modTime
		w.lastSize = info.Size()
		if w.onChange != nil {
			w.onChange()
		}
	}
}

// NotifyWatcher monitors a config file through filesystem events. It watches
// the parent directory so that editors which save by renaming a temp file
// over the original are still seen. Bursts of events within the debounce
// window produce one onChange call.
type NotifyWatcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onChange func()
	watcher  *fsnotify.Watcher
	done     chan struct{}
	once     sync.Once

	mu    sync.Mutex
	timer *time.Timer
}

// NewNotifyWatcher creates an event-driven config watcher.
func NewNotifyWatcher(path string, debounce time.Duration, logger *slog.Logger, onChange func()) (*NotifyWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &NotifyWatcher{
		path:     abs,
		debounce: debounce,
		logger:   logger.With("component", "config-watcher"),
		onChange: onChange,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start registers the watch and begins processing events.
func (w *NotifyWatcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	go w.run()
	w.logger.Info("config watcher started", "path", w.path, "mode", "fsnotify", "debounce", w.debounce)
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *NotifyWatcher) Stop() {
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn("closing fsnotify watcher", "error", err)
		}
		w.logger.Info("config watcher stopped")
	})
}

func (w *NotifyWatcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *NotifyWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *NotifyWatcher) fire() {
	select {
	case <-w.done:
		return
	default:
	}
	if _, err := os.Stat(w.path); err != nil {
		// Renamed away and not yet replaced; the replacement's Create follows.
		return
	}
	w.logger.Info("config file changed", "path", w.path)
	if w.onChange != nil {
		w.onChange()
	}
}
