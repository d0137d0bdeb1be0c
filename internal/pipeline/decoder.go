package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/ffmpeg"
	"github.com/smazurov/framescale/internal/frame"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/metrics"
	"github.com/smazurov/framescale/internal/process"
)

// Stage errors.
var (
	ErrIncompleteFrame = errors.New("incomplete frame")
	ErrProcessFailed   = errors.New("process exited with non-zero status")
)

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	Params  ffmpeg.DecodeParams
	Command []string // replaces the ffmpeg argv when set

	Width    int // source frame width
	Height   int // source frame height
	Settings *Settings

	Queue  chan<- Job // closed when Run returns
	Pause  *Pause
	Buffer *Buffer // sealed at the decoded frame count on success
	Bus    *events.Bus

	PollInterval    time.Duration
	GracefulTimeout time.Duration
}

// Decoder reads raw rgb24 frames from an ffmpeg process and turns them into
// jobs on the work queue.
type Decoder struct {
	opts   DecoderOptions
	stage  *Stage
	frames atomic.Int64
}

// NewDecoder creates a decoder. Call Run to start it.
func NewDecoder(opts DecoderOptions) *Decoder {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Pause == nil {
		opts.Pause = NewPause()
	}
	return &Decoder{
		opts:  opts,
		stage: NewStage(StageDecoder, opts.Bus),
	}
}

// Frames returns the number of frames decoded so far.
func (d *Decoder) Frames() int {
	return int(d.frames.Load())
}

// State returns the stage state.
func (d *Decoder) State() process.State {
	return d.stage.State()
}

// Err returns the terminal error after Run has returned.
func (d *Decoder) Err() error {
	return d.stage.Err()
}

func (d *Decoder) args() []string {
	if len(d.opts.Command) > 0 {
		return d.opts.Command
	}
	return ffmpeg.DecodeArgs(d.opts.Params)
}

// Run decodes until the source is exhausted, an error occurs or ctx is done.
// The queue is closed on return. Reaching the end of the source is not an
// error.
func (d *Decoder) Run(ctx context.Context) error {
	defer close(d.opts.Queue)

	if d.opts.Width <= 0 || d.opts.Height <= 0 {
		return d.stage.Finish(fmt.Errorf("%w: source size %dx%d", ErrInvalidSettings, d.opts.Width, d.opts.Height))
	}

	d.stage.Set(process.StateStarting)
	logger := d.stage.Logger()
	proc, err := process.Start(process.Options{
		Name:            StageDecoder,
		Args:            d.args(),
		Env:             ffmpeg.Env(),
		Stdout:          true,
		Logger:          logger,
		OutputLogger:    logging.GetLogger("ffmpeg").With("stage", StageDecoder),
		LogParser:       ffmpeg.ParseLogLine,
		GracefulTimeout: d.opts.GracefulTimeout,
	})
	if err != nil {
		return d.stage.Finish(err)
	}
	d.stage.Set(process.StateRunning)

	// A blocked read returns once ffmpeg exits on the interrupt.
	stop := context.AfterFunc(ctx, proc.Interrupt)
	defer stop()

	err = d.decode(ctx, proc.Stdout())
	if err == nil {
		logger.Info("Decoding finished", "frames", d.Frames())
		if d.opts.Buffer != nil {
			d.opts.Buffer.Seal(d.Frames())
		}
	}
	return d.stage.Finish(d.shutdown(ctx, proc, err))
}

func (d *Decoder) decode(ctx context.Context, stdout io.Reader) error {
	width, height := d.opts.Width, d.opts.Height
	size := frame.Size(width, height)

	var previous *frame.Image
	for index := 0; ; index++ {
		if err := holdWhilePaused(ctx, d.opts.Pause, d.stage); err != nil {
			return err
		}

		buf := make([]byte, size)
		if _, err := io.ReadFull(stdout, buf); err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, io.ErrUnexpectedEOF):
				return fmt.Errorf("%w: frame %d", ErrIncompleteFrame, index)
			default:
				return fmt.Errorf("read frame %d: %w", index, err)
			}
		}

		current, err := frame.FromBytes(width, height, buf)
		if err != nil {
			return err
		}
		d.frames.Store(int64(index + 1))
		metrics.IncFramesDecoded()

		job := Job{
			Index:    index,
			Previous: previous,
			Current:  current,
			Settings: d.opts.Settings,
		}
		if err := d.offer(ctx, job); err != nil {
			return err
		}
		previous = current
	}
}

// offer blocks until the queue accepts job, re-checking the pause flag every
// poll interval while the queue is full.
func (d *Decoder) offer(ctx context.Context, job Job) error {
	timer := time.NewTimer(d.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case d.opts.Queue <- job:
			metrics.SetQueueDepth(len(d.opts.Queue))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if err := holdWhilePaused(ctx, d.opts.Pause, d.stage); err != nil {
				return err
			}
			timer.Reset(d.opts.PollInterval)
		}
	}
}

// shutdown stops the process and folds its exit status into runErr.
func (d *Decoder) shutdown(ctx context.Context, proc *process.Process, runErr error) error {
	d.stage.Set(process.StateStopping)
	logger := d.stage.Logger()

	if runErr != nil {
		// Keep the pipe drained so ffmpeg is never stuck on a full write
		// while it handles the interrupt.
		go func() {
			_, _ = io.Copy(io.Discard, proc.Stdout())
		}()
	} else {
		select {
		case <-proc.Done():
		case <-ctx.Done():
		}
	}

	code := proc.Stop()
	if err := proc.CloseOutput(); err != nil {
		logger.Debug("Closing decoder output", "error", err)
	}

	switch {
	case runErr != nil:
		return runErr
	case ctx.Err() != nil:
		return ctx.Err()
	case code != 0:
		return fmt.Errorf("%w: %s exited with code %d", ErrProcessFailed, StageDecoder, code)
	}
	return nil
}

// holdWhilePaused blocks while pause is set, reporting the paused state on
// the stage.
func holdWhilePaused(ctx context.Context, pause *Pause, stage *Stage) error {
	if pause == nil || !pause.Paused() {
		return ctx.Err()
	}
	stage.Set(process.StatePaused)
	defer stage.Set(process.StateRunning)
	return pause.Wait(ctx)
}
