package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smazurov/framescale/internal/logging"
)

const defaultDebounce = 1500 * time.Millisecond

// Watcher reloads framescale.toml while a run is in progress. The parent
// directory is watched, not the file, so that editors saving through a
// rename are noticed. Saves that leave the content unchanged are ignored.
type Watcher struct {
	path     string
	debounce time.Duration
	load     func(path string) (File, error)
	onError  func(error)
	logger   *slog.Logger

	mu       sync.Mutex
	handlers map[int]func(File)
	nextID   int
	applied  []byte

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the file must stay quiet before a reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithErrorHandler receives errors of reloads that were rejected.
func WithErrorHandler(fn func(error)) WatchOption {
	return func(w *Watcher) { w.onError = fn }
}

// WithLoader replaces LoadFile as the parser of the watched file.
func WithLoader(fn func(path string) (File, error)) WatchOption {
	return func(w *Watcher) { w.load = fn }
}

// WithLogger replaces the config module logger.
func WithLogger(logger *slog.Logger) WatchOption {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, opts ...WatchOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		load:     LoadFile,
		logger:   logging.GetLogger("config"),
		handlers: make(map[int]func(File)),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload registers fn for every accepted reload and returns a function
// that removes it again.
func (w *Watcher) OnReload(fn func(File)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.handlers, id)
	}
}

// Start begins watching. It fails when the directory of the file does not exist.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if addErr := fsw.Add(filepath.Dir(w.path)); addErr != nil {
		fsw.Close()
		return addErr
	}
	w.fsw = fsw

	// A missing file reads as empty; creating it later counts as a change.
	w.applied, _ = os.ReadFile(w.path)

	w.logger.Info("Watching config file", "path", w.path, "debounce", w.debounce)
	go w.run()
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

func (w *Watcher) run() {
	quiet := time.NewTimer(time.Hour)
	quiet.Stop()
	defer quiet.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Remove) {
				w.logger.Warn("Config file removed, keeping current settings", "path", w.path)
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				quiet.Reset(w.debounce)
			}

		case <-quiet.C:
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	content, err := os.ReadFile(w.path)
	if err != nil {
		w.reject(err)
		return
	}

	w.mu.Lock()
	unchanged := bytes.Equal(content, w.applied)
	w.mu.Unlock()
	if unchanged {
		w.logger.Debug("Config file saved without changes")
		return
	}

	f, err := w.load(w.path)
	if err != nil {
		w.reject(err)
		return
	}

	w.mu.Lock()
	w.applied = content
	handlers := make([]func(File), 0, len(w.handlers))
	for id := range w.nextID {
		if fn, ok := w.handlers[id]; ok {
			handlers = append(handlers, fn)
		}
	}
	w.mu.Unlock()

	w.logger.Info("Config file reloaded", "path", w.path)
	for _, fn := range handlers {
		fn(f)
	}
}

func (w *Watcher) reject(err error) {
	w.logger.Warn("Config reload rejected, keeping current settings", "error", err)
	if w.onError != nil {
		w.onError(err)
	}
}

// WatchFile watches the config at path, re-applies its [logging] levels on
// every change and then passes the fresh File to onReload, if not nil.
func WatchFile(path string, onReload func(File)) (*Watcher, error) {
	w := NewWatcher(path)
	w.OnReload(func(f File) {
		logging.SetLevels(f.Logging)
		w.logger.Info("Log levels reloaded", "level", f.Logging.Level, "modules", len(f.Logging.Modules))
	})
	if onReload != nil {
		w.OnReload(onReload)
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}
