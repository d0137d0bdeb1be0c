package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/metrics"
	"github.com/smazurov/framescale/internal/metrics/collectors"
	"github.com/smazurov/framescale/internal/process"
)

// ErrAlreadyStarted is returned when Run is called twice on a Runner.
var ErrAlreadyStarted = errors.New("runner already started")

// Scaler consumes jobs and fills the output buffer. Run returns once jobs is
// closed and drained, or on the first unrecoverable error.
type Scaler interface {
	Run(ctx context.Context, jobs <-chan Job, out *Buffer, pause *Pause) error
	Skipped() int
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Bus   *events.Bus
	Pause *Pause // shared with external controllers, nil creates one

	PollInterval    time.Duration
	GracefulTimeout time.Duration

	// Progress reports ffmpeg -progress output as metrics through unix
	// sockets created in ProgressDir.
	Progress    bool
	ProgressDir string

	DecoderCommand []string // replaces the ffmpeg decoder argv
	EncoderCommand []string // replaces the ffmpeg encoder argv
}

// Status is a point-in-time view of a run.
type Status struct {
	Input     string                   `json:"input" example:"in.mp4" doc:"Input path"`
	Output    string                   `json:"output" example:"out.mp4" doc:"Output path"`
	Algorithm string                   `json:"algorithm" example:"waifu2x" doc:"Upscaling algorithm"`
	Width     int                      `json:"width" example:"3840" doc:"Output width"`
	Height    int                      `json:"height" example:"2160" doc:"Output height"`
	Workers   int                      `json:"workers" example:"2" doc:"Upscaling workers"`
	Total     int                      `json:"total" example:"1200" doc:"Expected frame count, 0 if unknown"`
	Decoded   int                      `json:"decoded" example:"600" doc:"Frames read from the decoder"`
	Processed int                      `json:"processed" example:"512" doc:"Frames written to the encoder"`
	Skipped   int                      `json:"skipped" example:"140" doc:"Frames that reused the previous result"`
	Paused    bool                     `json:"paused" doc:"Whether the pipeline is paused"`
	Running   bool                     `json:"running" doc:"Whether the run is in progress"`
	Stages    map[string]process.State `json:"stages" doc:"State of each stage"`
	Elapsed   float64                  `json:"elapsed_seconds" example:"42.5" doc:"Seconds since the run started"`
	Error     string                   `json:"error,omitempty" doc:"Aggregated error once the run failed"`
}

// Runner wires decoder, scaler and encoder together and owns the cross-stage
// contract: the first stage to fail cancels the others.
type Runner struct {
	plan   *Plan
	scaler Scaler
	opts   RunnerOptions
	logger logging.Logger

	pause    *Pause
	buffer   *Buffer
	queue    chan Job
	decoder  *Decoder
	encoder  *Encoder
	upscaler *Stage

	progress []*collectors.FFmpegCollector

	started  atomic.Bool
	running  atomic.Bool
	startAt  atomic.Int64
	finishAt atomic.Int64

	errMu sync.RWMutex
	err   error
}

// NewRunner prepares a run of plan. The plan must not change afterwards.
func NewRunner(plan *Plan, scaler Scaler, opts RunnerOptions) *Runner {
	if opts.Pause == nil {
		opts.Pause = NewPause()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	r := &Runner{
		plan:     plan,
		scaler:   scaler,
		opts:     opts,
		logger:   logging.GetLogger("main"),
		pause:    opts.Pause,
		buffer:   NewBuffer(plan.Source.TotalFrames),
		queue:    make(chan Job, max(1, plan.QueueSize)),
		upscaler: NewStage(StageUpscaler, opts.Bus),
	}

	decode, encode := plan.Decode, plan.Encode
	if opts.Progress {
		runID := strconv.Itoa(os.Getpid())
		for _, stage := range []string{StageDecoder, StageEncoder} {
			path := collectors.SocketPath(opts.ProgressDir, runID, stage)
			r.progress = append(r.progress, collectors.NewFFmpegCollector(path, stage))
		}
		decode.Progress = collectors.ProgressURL(r.progress[0].SocketPath())
		encode.Progress = collectors.ProgressURL(r.progress[1].SocketPath())
	}

	r.decoder = NewDecoder(DecoderOptions{
		Params:          decode,
		Command:         opts.DecoderCommand,
		Width:           plan.Source.Width,
		Height:          plan.Source.Height,
		Settings:        &plan.Settings,
		Queue:           r.queue,
		Pause:           r.pause,
		Buffer:          r.buffer,
		Bus:             opts.Bus,
		PollInterval:    opts.PollInterval,
		GracefulTimeout: opts.GracefulTimeout,
	})
	r.encoder = NewEncoder(EncoderOptions{
		Params:          encode,
		Command:         opts.EncoderCommand,
		Buffer:          r.buffer,
		Pause:           r.pause,
		Bus:             opts.Bus,
		PollInterval:    opts.PollInterval,
		GracefulTimeout: opts.GracefulTimeout,
	})

	r.pause.OnChange(func(paused bool) {
		metrics.SetPaused(paused)
		r.logger.Info("Pause changed", "paused", paused)
		opts.Bus.Publish(events.PauseChangedEvent{
			Paused:    paused,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	})
	return r
}

// Pause returns the shared pause flag.
func (r *Runner) Pause() *Pause {
	return r.pause
}

// SetPaused pauses or resumes every stage and reports whether the flag
// changed.
func (r *Runner) SetPaused(paused bool) bool {
	return r.pause.Set(paused)
}

// Buffer returns the shared output buffer.
func (r *Runner) Buffer() *Buffer {
	return r.buffer
}

// Run executes the pipeline and blocks until every stage has stopped.
// Cancellations caused by a failing sibling are not reported; the error that
// caused them is. When ctx is cancelled and no stage failed, ctx.Err() is
// returned.
func (r *Runner) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	r.startAt.Store(time.Now().UnixNano())
	r.running.Store(true)

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.logger.Info("Starting pipeline",
		"input", r.plan.Decode.Input,
		"output", r.plan.Encode.Output,
		"size", fmt.Sprintf("%dx%d", r.plan.Settings.OutputWidth, r.plan.Settings.OutputHeight),
		"algorithm", r.plan.Settings.Algorithm,
		"workers", r.plan.Workers,
		"queue", r.plan.QueueSize,
		"frames", r.plan.Source.TotalFrames)

	err := r.startProgress(ctx)
	if err == nil {
		err = r.runStages(ctx, cancel)
		if err == nil && parent.Err() != nil {
			err = parent.Err()
		}
	}
	r.stopProgress()

	r.finish(err)
	return err
}

func (r *Runner) runStages(ctx context.Context, cancel context.CancelFunc) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err == nil {
				return
			}
			cancel()
			if errors.Is(err, context.Canceled) {
				return
			}
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}

	run(r.decoder.Run)
	run(r.runScaler)
	run(r.encoder.Run)
	wg.Wait()

	return errors.Join(errs...)
}

func (r *Runner) runScaler(ctx context.Context) error {
	r.upscaler.Set(process.StateRunning)
	err := r.scaler.Run(ctx, r.queue, r.buffer, r.pause)
	if err != nil && errors.Is(err, context.Canceled) {
		r.upscaler.Set(process.StateStopped)
		return err
	}
	return r.upscaler.Finish(err)
}

func (r *Runner) startProgress(ctx context.Context) error {
	for i, c := range r.progress {
		if err := c.Start(ctx); err != nil {
			for _, started := range r.progress[:i] {
				_ = started.Stop()
			}
			r.progress = nil
			return fmt.Errorf("progress socket: %w", err)
		}
	}
	return nil
}

func (r *Runner) stopProgress() {
	for _, c := range r.progress {
		if err := c.Stop(); err != nil {
			r.logger.Debug("Stopping progress collector", "error", err)
		}
	}
}

func (r *Runner) finish(err error) {
	r.finishAt.Store(time.Now().UnixNano())
	r.running.Store(false)

	r.errMu.Lock()
	r.err = err
	r.errMu.Unlock()

	status := r.Status()
	ev := events.RunFinishedEvent{
		Processed: status.Processed,
		Skipped:   status.Skipped,
		Elapsed:   status.Elapsed,
	}
	if err != nil {
		ev.Error = err.Error()
		r.logger.Error("Pipeline failed", "error", err, "processed", status.Processed)
	} else {
		r.logger.Info("Pipeline finished",
			"processed", status.Processed,
			"skipped", status.Skipped,
			"elapsed", time.Duration(status.Elapsed*float64(time.Second)).Round(time.Millisecond))
	}
	r.opts.Bus.Publish(ev)
}

// Err returns the aggregated error of a finished run.
func (r *Runner) Err() error {
	r.errMu.RLock()
	defer r.errMu.RUnlock()
	return r.err
}

// Status returns a snapshot of the run.
func (r *Runner) Status() Status {
	s := Status{
		Input:     r.plan.Decode.Input,
		Output:    r.plan.Encode.Output,
		Algorithm: r.plan.Settings.Algorithm,
		Width:     r.plan.Settings.OutputWidth,
		Height:    r.plan.Settings.OutputHeight,
		Workers:   r.plan.Workers,
		Total:     r.buffer.Total(),
		Decoded:   r.decoder.Frames(),
		Processed: r.encoder.Processed(),
		Skipped:   r.scaler.Skipped(),
		Paused:    r.pause.Paused(),
		Running:   r.running.Load(),
		Stages: map[string]process.State{
			StageDecoder:  r.decoder.State(),
			StageUpscaler: r.upscaler.State(),
			StageEncoder:  r.encoder.State(),
		},
	}

	if start := r.startAt.Load(); start != 0 {
		end := r.finishAt.Load()
		if end == 0 {
			end = time.Now().UnixNano()
		}
		s.Elapsed = time.Duration(end - start).Seconds()
	}
	if err := r.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}
