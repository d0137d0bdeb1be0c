package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/ffmpeg"
	"github.com/smazurov/framescale/internal/frame"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/metrics"
	"github.com/smazurov/framescale/internal/process"
)

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	Params  ffmpeg.EncodeParams // Width and Height are the output frame size
	Command []string            // replaces the ffmpeg argv when set

	Buffer *Buffer
	Pause  *Pause
	Bus    *events.Bus

	PollInterval    time.Duration
	GracefulTimeout time.Duration
}

// Encoder drains the output buffer strictly in frame order into an ffmpeg
// process.
type Encoder struct {
	opts      EncoderOptions
	stage     *Stage
	processed atomic.Int64
}

// NewEncoder creates an encoder. Call Run to start it.
func NewEncoder(opts EncoderOptions) *Encoder {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Pause == nil {
		opts.Pause = NewPause()
	}
	return &Encoder{
		opts:  opts,
		stage: NewStage(StageEncoder, opts.Bus),
	}
}

// Processed returns the number of frames written to the encoder.
func (e *Encoder) Processed() int {
	return int(e.processed.Load())
}

// State returns the stage state.
func (e *Encoder) State() process.State {
	return e.stage.State()
}

// Err returns the terminal error after Run has returned.
func (e *Encoder) Err() error {
	return e.stage.Err()
}

func (e *Encoder) args() []string {
	if len(e.opts.Command) > 0 {
		return e.opts.Command
	}
	return ffmpeg.EncodeArgs(e.opts.Params)
}

// Run encodes frames until the buffer reports the end of frames, a slot
// fails, a write fails or ctx is done.
func (e *Encoder) Run(ctx context.Context) error {
	e.stage.Set(process.StateStarting)
	proc, err := process.Start(process.Options{
		Name:            StageEncoder,
		Args:            e.args(),
		Env:             ffmpeg.Env(),
		Stdin:           true,
		Logger:          e.stage.Logger(),
		OutputLogger:    logging.GetLogger("ffmpeg").With("stage", StageEncoder),
		LogParser:       ffmpeg.ParseLogLine,
		GracefulTimeout: e.opts.GracefulTimeout,
	})
	if err != nil {
		return e.stage.Finish(err)
	}
	e.stage.Set(process.StateRunning)

	// A blocked write fails with EPIPE once ffmpeg exits on the interrupt.
	stop := context.AfterFunc(ctx, proc.Interrupt)
	defer stop()

	err = e.encode(ctx, proc.Stdin())
	if err == nil {
		e.stage.Logger().Info("Encoding finished", "frames", e.Processed())
	}
	return e.stage.Finish(e.shutdown(ctx, proc, err))
}

func (e *Encoder) encode(ctx context.Context, w io.Writer) error {
	buf := e.opts.Buffer
	width, height := e.opts.Params.Width, e.opts.Params.Height

	for index := 0; ; index++ {
		img, err := e.next(ctx, index)
		if errors.Is(err, ErrEndOfFrames) {
			buf.Release(index - 1)
			return nil
		}
		if err != nil {
			return err
		}
		if img.Width != width || img.Height != height {
			return fmt.Errorf("%w: frame %d is %dx%d, encoder expects %dx%d",
				frame.ErrSizeMismatch, index, img.Width, img.Height, width, height)
		}

		if _, err := w.Write(img.Bytes()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("write frame %d: %w", index, err)
		}

		// Slot index stays filled until the next frame is consumed, since
		// a skipped frame index+1 may still copy it.
		buf.Release(index - 1)

		processed := int(e.processed.Add(1))
		metrics.IncFramesEncoded()
		e.opts.Bus.Publish(events.FrameEncodedEvent{
			Index:     index,
			Processed: processed,
			Total:     buf.Total(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// next waits for slot index, re-checking the pause flag every poll interval.
func (e *Encoder) next(ctx context.Context, index int) (*frame.Image, error) {
	for {
		if err := holdWhilePaused(ctx, e.opts.Pause, e.stage); err != nil {
			return nil, err
		}
		img, err := e.opts.Buffer.Await(ctx, index, e.opts.PollInterval)
		if errors.Is(err, ErrNotReady) {
			continue
		}
		return img, err
	}
}

// shutdown closes stdin, lets ffmpeg finalize the container on success and
// folds the exit status into runErr.
func (e *Encoder) shutdown(ctx context.Context, proc *process.Process, runErr error) error {
	e.stage.Set(process.StateStopping)

	if err := proc.CloseInput(); err != nil && !errors.Is(err, os.ErrClosed) {
		e.stage.Logger().Debug("Closing encoder input", "error", err)
	}

	if runErr == nil {
		select {
		case <-proc.Done():
		case <-ctx.Done():
		}
	}
	code := proc.Stop()

	switch {
	case runErr != nil:
		return runErr
	case ctx.Err() != nil:
		return ctx.Err()
	case code != 0:
		return fmt.Errorf("%w: %s exited with code %d", ErrProcessFailed, StageEncoder, code)
	}
	return nil
}
