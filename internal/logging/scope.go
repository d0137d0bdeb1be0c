package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
)

// field is an attribute whose key is already qualified by its groups.
type field struct {
	key   string
	value slog.Value
}

// scope carries the state shared by handlers that flatten records
// themselves: the level and what WithAttrs and WithGroup accumulated.
type scope struct {
	level  slog.Leveler
	fields []field
	groups []string
}

func (s scope) enabled(level slog.Level) bool {
	return level >= s.level.Level()
}

// withAttrs qualifies attrs by the groups open at the time of the call.
func (s scope) withAttrs(attrs []slog.Attr) scope {
	fields := slices.Clip(s.fields)
	for _, a := range attrs {
		fields = flatten(fields, s.groups, a)
	}
	s.fields = fields
	return s
}

func (s scope) withGroup(name string) scope {
	if name != "" {
		s.groups = append(slices.Clip(s.groups), name)
	}
	return s
}

// flattenRecord returns the scope fields followed by the record attributes.
func (s scope) flattenRecord(r slog.Record) []field {
	fields := slices.Clone(s.fields)
	r.Attrs(func(a slog.Attr) bool {
		fields = flatten(fields, s.groups, a)
		return true
	})
	return fields
}

func flatten(dst []field, groups []string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			groups = append(slices.Clip(groups), a.Key)
		}
		for _, ga := range a.Value.Group() {
			dst = flatten(dst, groups, ga)
		}
		return dst
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, field{key: key, value: a.Value})
}

// fanout sends each record to every handler enabled for its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle keeps going after a failing handler; the failures are joined.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
