package ffmpeg

import (
	"log/slog"
	"strings"
)

// levels maps the tags printed by -loglevel level+<x> to slog levels.
var levels = map[string]slog.Level{
	"quiet":   slog.LevelError,
	"panic":   slog.LevelError,
	"fatal":   slog.LevelError,
	"error":   slog.LevelError,
	"warning": slog.LevelWarn,
	"info":    slog.LevelInfo,
	"verbose": slog.LevelDebug,
	"debug":   slog.LevelDebug,
	"trace":   slog.LevelDebug,
}

// ParseLogLine returns the level of an ffmpeg stderr line and the line
// without its level tag. Both "[warning] msg" and
// "[swscaler @ 0x55d0] [warning] msg" are recognised; the component prefix
// is kept. Untagged lines are info.
func ParseLogLine(line string) (slog.Level, string) {
	tag, rest, ok := cutTag(line)
	if !ok {
		return slog.LevelInfo, line
	}
	if level, known := levels[tag]; known {
		return level, rest
	}

	component := line[:len(line)-len(rest)]
	if tag, msg, ok := cutTag(rest); ok {
		if level, known := levels[tag]; known {
			return level, component + msg
		}
	}
	return slog.LevelInfo, line
}

func cutTag(s string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	return strings.Cut(s[1:], "] ")
}

// LogLevelFor maps an application log level (debug, info, warn, error) to the
// ffmpeg -loglevel that produces the same verbosity.
func LogLevelFor(level string) string {
	switch strings.ToLower(level) {
	case "trace":
		return "trace"
	case "debug":
		return "debug"
	case "warn", "warning":
		return "warning"
	case "error":
		return "error"
	case "fatal", "critical":
		return "fatal"
	default:
		return "info"
	}
}
