package process

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestRelayLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	names := map[string]slog.Level{"error": slog.LevelError, "warning": slog.LevelWarn, "verbose": slog.LevelDebug, "panic": slog.LevelError + 4}
	parser := func(line string) (slog.Level, string) {
		name, msg, found := strings.Cut(line, " ")
		level, known := names[name]
		if !found || !known {
			return slog.LevelInfo, line
		}
		return level, msg
	}

	relay := NewRelay("stderr", logger, parser, nil)
	relay.Start()
	for _, line := range []string{"error boom", "warning careful", "verbose noisy", "panic dead", "plain"} {
		fmt.Fprintln(relay.Writer(), line)
	}
	relay.Stop()
	relay.Join()

	out := buf.String()
	for _, want := range []string{
		`level=ERROR msg=boom`,
		`level=WARN msg=careful`,
		`level=DEBUG msg=noisy`,
		`level=ERROR msg=dead`,
		`level=INFO msg=plain`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRelayStopWithoutOutput(t *testing.T) {
	relay := NewRelay("stderr", testLogger(), nil, nil)
	relay.Start()
	relay.Stop()
	relay.Join()
}
