package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// defaultModule names records logged without a module attribute.
const defaultModule = "main"

// Entry is one record kept in the log history.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Module  string         `json:"module"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// History keeps the newest entries in a fixed-size ring.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewHistory creates a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	return &History{entries: make([]Entry, max(capacity, 1))}
}

// Append stores entry, evicting the oldest one when the ring is full.
func (h *History) Append(entry Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.next] = entry
	h.next++
	if h.next == len(h.entries) {
		h.next = 0
		h.full = true
	}
}

// Snapshot returns all entries, oldest first.
func (h *History) Snapshot() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		return append([]Entry(nil), h.entries[:h.next]...)
	}
	out := make([]Entry, 0, len(h.entries))
	out = append(out, h.entries[h.next:]...)
	return append(out, h.entries[:h.next]...)
}

// Last returns up to n of the newest entries of module, oldest first.
// An empty module matches every entry and n <= 0 means no limit.
func (h *History) Last(n int, module string) []Entry {
	all := h.Snapshot()
	var out []Entry
	for i := len(all) - 1; i >= 0; i-- {
		if n > 0 && len(out) == n {
			break
		}
		if module == "" || all[i].Module == module {
			out = append(out, all[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// historyHandler appends records to the process-wide history.
type historyHandler struct {
	scope
}

func (h *historyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.enabled(level)
}

func (h *historyHandler) Handle(_ context.Context, r slog.Record) error {
	entry := Entry{
		Time:    r.Time,
		Level:   levelName(r.Level),
		Module:  defaultModule,
		Message: r.Message,
	}
	for _, f := range h.flattenRecord(r) {
		if f.key == "module" {
			entry.Module = f.value.String()
			continue
		}
		if entry.Attrs == nil {
			entry.Attrs = make(map[string]any)
		}
		entry.Attrs[f.key] = historyValue(f.value)
	}
	std.append(entry)
	return nil
}

func (h *historyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &historyHandler{scope: h.withAttrs(attrs)}
}

func (h *historyHandler) WithGroup(name string) slog.Handler {
	return &historyHandler{scope: h.withGroup(name)}
}

// historyValue converts v to something that encodes well as JSON.
func historyValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.Any()
}

// FormatLine renders entry as a single line of text.
func FormatLine(entry Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-5s %s: %s",
		entry.Time.Format("15:04:05.000"), strings.ToUpper(entry.Level), entry.Module, entry.Message)

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attrs[k])
	}
	return sb.String()
}
