package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
)

const defaultHistorySize = 1000

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Callback receives every entry appended to the log history.
type Callback func(entry Entry)

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

type registry struct {
	mu       sync.RWMutex
	config   Config
	ready    bool
	global   slog.LevelVar
	modules  map[string]moduleLogger
	history  *History
	callback Callback
}

func newRegistry() *registry {
	return &registry{
		modules: make(map[string]moduleLogger),
		history: NewHistory(defaultHistorySize),
	}
}

var (
	std    = newRegistry()
	output = &outputWriter{w: os.Stderr}
)

// Initialize sets up the logging system.
func Initialize(config Config) {
	std.mu.Lock()
	defer std.mu.Unlock()

	std.config = config
	std.ready = true

	// Cached module loggers keep their handlers; only their levels change.
	std.global.Set(std.applyLevels())
	slog.SetDefault(slog.New(newHandler(config.Format, &std.global)))
}

// SetLevels changes global and per-module levels of existing loggers in
// place. The output format is left untouched. Used when the config file is
// edited while a run is in progress.
func SetLevels(config Config) {
	std.mu.Lock()
	defer std.mu.Unlock()

	std.config.Level = config.Level
	std.config.Modules = config.Modules
	std.global.Set(std.applyLevels())
}

// SetOutput redirects the text or JSON stream of every logger. The default
// is stderr so that command output on stdout stays machine readable.
func SetOutput(w io.Writer) {
	output.set(w)
}

// Recent returns the in-memory history served by the control API.
func Recent() *History {
	std.mu.RLock()
	defer std.mu.RUnlock()
	return std.history
}

// OnEntry installs a callback invoked for each new history entry.
func OnEntry(callback Callback) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.callback = callback
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	std.mu.RLock()
	m, ok := std.modules[module]
	std.mu.RUnlock()
	if ok {
		return m.logger
	}

	std.mu.Lock()
	defer std.mu.Unlock()
	if m, ok := std.modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	format := "text"
	if std.ready {
		level.Set(moduleLevel(std.config, module, globalLevel(std.config)))
		format = std.config.Format
	}

	m = moduleLogger{
		logger: slog.New(newHandler(format, level)).With("module", module),
		level:  level,
	}
	std.modules[module] = m
	return m.logger
}

// applyLevels updates every module level from the current config and
// returns the resolved global level. Callers hold mu.
func (r *registry) applyLevels() slog.Level {
	global := globalLevel(r.config)
	for module, m := range r.modules {
		m.level.Set(moduleLevel(r.config, module, global))
	}
	return global
}

func (r *registry) append(entry Entry) {
	r.mu.RLock()
	history, callback := r.history, r.callback
	r.mu.RUnlock()

	history.Append(entry)
	if callback != nil {
		callback(entry)
	}
}

func globalLevel(config Config) slog.Level {
	if level, ok := ParseLevel(config.Level); ok {
		return level
	}
	return slog.LevelInfo
}

func moduleLevel(config Config, module string, fallback slog.Level) slog.Level {
	if level, ok := ParseLevel(config.Modules[module]); ok {
		return level
	}
	return fallback
}

// newHandler builds the handler chain of one logger. Records always reach
// the history. Under systemd, when stderr is already the journal stream,
// structured journal fields replace the text stream.
func newHandler(format string, level slog.Leveler) slog.Handler {
	handlers := fanout{&historyHandler{scope: scope{level: level}}}

	switch {
	case output.isStderr() && stderrIsJournal():
		handlers = append(handlers, &journalHandler{scope: scope{level: level}})
	case output.available():
		opts := &slog.HandlerOptions{Level: level}
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(output, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(output, opts))
		}
	}

	if len(handlers) == 1 {
		return handlers[0]
	}
	return handlers
}

func stderrIsJournal() bool {
	ok, err := journal.StderrIsJournalStream()
	return err == nil && ok && journal.Enabled()
}

// ParseLevel converts a level name to slog.Level.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// outputWriter serializes writes from all loggers and lets tests swap the
// destination after loggers were created.
type outputWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *outputWriter) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}

func (o *outputWriter) set(w io.Writer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.w = w
}

func (o *outputWriter) isStderr() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w == os.Stderr
}

// available reports false when stderr points at /dev/null or is closed.
func (o *outputWriter) available() bool {
	o.mu.Lock()
	f, ok := o.w.(*os.File)
	o.mu.Unlock()
	if !ok {
		return true
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 && !isDevNull(f) ||
		mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func isDevNull(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	null, err := os.Stat(os.DevNull)
	return err == nil && os.SameFile(fi, null)
}
