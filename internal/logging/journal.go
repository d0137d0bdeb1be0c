package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry written by this process.
const SyslogIdentifier = "framescale"

// journalHandler sends records to the systemd journal with one field per
// attribute, so `journalctl MODULE=encoder FRAME=120` works.
type journalHandler struct {
	scope
}

func (h *journalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

func (h *journalHandler) Handle(_ context.Context, r slog.Record) error {
	vars := map[string]string{"SYSLOG_IDENTIFIER": SyslogIdentifier}
	for _, f := range h.flattenRecord(r) {
		vars[journalKey(f.key)] = journalValue(f.value)
	}
	if err := journal.Send(r.Message, journalPriority(r.Level), vars); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

func (h *journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &journalHandler{scope: h.withAttrs(attrs)}
}

func (h *journalHandler) WithGroup(name string) slog.Handler {
	return &journalHandler{scope: h.withGroup(name)}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalKey maps an attribute key to a valid journal field name:
// uppercase letters, digits and underscores, not starting with one.
func journalKey(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	name = strings.TrimLeft(name, "_")
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		name = "ATTR_" + name
	}
	return name
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.String()
}
