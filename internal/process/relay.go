package process

import (
	"bufio"
	"io"
	"log/slog"

	"github.com/smazurov/framescale/internal/logging"
)

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser returns the level of an output line and the message to log.
type LogParser func(line string) (slog.Level, string)

const maxLineSize = 1024 * 1024

// Relay forwards a subprocess output stream to a logger, one record per
// line. Writes go into an in-memory pipe that a single goroutine drains, so
// a Relay can be assigned directly to exec.Cmd.Stderr.
type Relay struct {
	source  string
	logger  logging.Logger
	parser  LogParser
	handler OutputHandler

	r    *io.PipeReader
	w    *io.PipeWriter
	done chan struct{}
}

// NewRelay creates a relay. parser and handler may be nil.
func NewRelay(source string, logger logging.Logger, parser LogParser, handler OutputHandler) *Relay {
	r, w := io.Pipe()
	return &Relay{
		source:  source,
		logger:  logger,
		parser:  parser,
		handler: handler,
		r:       r,
		w:       w,
		done:    make(chan struct{}),
	}
}

// Writer is the end the subprocess writes to.
func (r *Relay) Writer() io.Writer {
	return r.w
}

// Start begins draining the stream.
func (r *Relay) Start() {
	go func() {
		defer close(r.done)
		r.stream()
	}()
}

// Stop marks the end of the stream. Lines already written are still relayed.
func (r *Relay) Stop() {
	r.w.Close()
}

// Join waits for every pending line to be relayed.
func (r *Relay) Join() {
	<-r.done
}

func (r *Relay) stream() {
	scanner := bufio.NewScanner(r.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if r.handler != nil {
			r.handler.HandleLine(r.source, line)
		}

		level, msg := slog.LevelInfo, line
		if r.parser != nil {
			level, msg = r.parser(line)
		}

		switch {
		case level >= slog.LevelError:
			r.logger.Error(msg)
		case level >= slog.LevelWarn:
			r.logger.Warn(msg)
		case level >= slog.LevelInfo:
			r.logger.Info(msg)
		default:
			r.logger.Debug(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		r.logger.Warn("Error reading output", "source", r.source, "error", err)
		// Keep draining so the writer never blocks
		_, _ = io.Copy(io.Discard, r.r)
	}
}
