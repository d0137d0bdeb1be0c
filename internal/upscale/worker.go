package upscale

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/framescale/internal/backend"
	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/frame"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/metrics"
	"github.com/smazurov/framescale/internal/pipeline"
)

// WorkerState is the position of a worker in its job loop.
type WorkerState string

// Worker states.
const (
	WorkerIdle       WorkerState = "idle"
	WorkerFetching   WorkerState = "fetching"
	WorkerSkipWait   WorkerState = "skip-wait"
	WorkerScaling    WorkerState = "scaling"
	WorkerPublishing WorkerState = "publishing"
	WorkerStopped    WorkerState = "stopped"
)

// outcome of one job.
type outcome int

const (
	outcomeScaled outcome = iota
	outcomeSkipped
)

// worker processes jobs with its own processor cache. It shares nothing with
// its siblings except the queue, the output buffer and the pause flag.
type worker struct {
	index    int
	gpu      int
	registry *backend.Registry
	bus      *events.Bus
	poll     time.Duration
	logger   logging.Logger

	cache      *processorCache
	algorithms map[string]backend.Algorithm

	mu    sync.RWMutex
	state WorkerState
}

func newWorker(index, gpu int, registry *backend.Registry, bus *events.Bus, poll time.Duration) *worker {
	return &worker{
		index:      index,
		gpu:        gpu,
		registry:   registry,
		bus:        bus,
		poll:       poll,
		logger:     logging.GetLogger("upscaler").With("worker", index, "gpu", gpu),
		cache:      newProcessorCache(gpu),
		algorithms: make(map[string]backend.Algorithm),
		state:      WorkerIdle,
	}
}

func (w *worker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *worker) setState(s WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// run loops until jobs is closed, ctx is done or a job fails. A failed job
// poisons its slot so nothing waits on it forever.
func (w *worker) run(ctx context.Context, jobs <-chan pipeline.Job, out *pipeline.Buffer, pause *pipeline.Pause, onSkip func()) error {
	defer w.setState(WorkerStopped)
	w.logger.Debug("Worker started")

	for {
		w.setState(WorkerIdle)
		if err := pause.Wait(ctx); err != nil {
			return err
		}

		w.setState(WorkerFetching)
		job, ok, err := w.fetch(ctx, jobs, pause)
		if err != nil {
			return err
		}
		if !ok {
			w.logger.Debug("Work queue closed")
			return nil
		}

		metrics.WorkerBusy(1)
		result, err := w.handle(ctx, job, out, pause)
		metrics.WorkerBusy(-1)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.IncFramesFailed()
			if ferr := out.Fail(job.Index, err); ferr != nil {
				w.logger.Warn("Could not mark frame failed", "index", job.Index, "error", ferr)
			}
			w.logger.Error("Frame failed", "index", job.Index, "error", err)
			return fmt.Errorf("worker %d: frame %d: %w", w.index, job.Index, err)
		}
		if result == outcomeSkipped && onSkip != nil {
			onSkip()
		}
	}
}

// fetch takes one job, re-checking the pause flag every poll interval while
// the queue is empty.
func (w *worker) fetch(ctx context.Context, jobs <-chan pipeline.Job, pause *pipeline.Pause) (pipeline.Job, bool, error) {
	timer := time.NewTimer(w.poll)
	defer timer.Stop()

	for {
		select {
		case job, ok := <-jobs:
			if ok {
				metrics.SetQueueDepth(len(jobs))
			}
			return job, ok, nil
		case <-ctx.Done():
			return pipeline.Job{}, false, ctx.Err()
		case <-timer.C:
			if err := pause.Wait(ctx); err != nil {
				return pipeline.Job{}, false, err
			}
			timer.Reset(w.poll)
		}
	}
}

func (w *worker) handle(ctx context.Context, job pipeline.Job, out *pipeline.Buffer, pause *pipeline.Pause) (outcome, error) {
	settings := job.Settings
	if settings == nil {
		return outcomeScaled, errors.New("job has no settings")
	}

	if job.Previous != nil && job.Index > 0 {
		diff, err := frame.DifferenceRatio(job.Previous, job.Current)
		if err != nil {
			return outcomeScaled, err
		}
		if diff < settings.DifferenceThreshold {
			return outcomeSkipped, w.skip(ctx, job, out, pause, diff)
		}
	}
	return outcomeScaled, w.scale(ctx, job, out)
}

// skip reuses the result of the previous frame once it is available. Nothing
// is published while the pipeline is paused.
func (w *worker) skip(ctx context.Context, job pipeline.Job, out *pipeline.Buffer, pause *pipeline.Pause, diff float64) error {
	w.setState(WorkerSkipWait)

	var previous *frame.Image
	for {
		img, err := out.Await(ctx, job.Index-1, w.poll)
		if errors.Is(err, pipeline.ErrNotReady) {
			if err := pause.Wait(ctx); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("reuse frame %d: %w", job.Index-1, err)
		}
		previous = img
		break
	}
	if err := pause.Wait(ctx); err != nil {
		return err
	}

	w.setState(WorkerPublishing)
	if err := out.Put(job.Index, previous); err != nil {
		return err
	}

	metrics.IncFramesSkipped()
	w.bus.Publish(events.FrameSkippedEvent{
		Index:      job.Index,
		Worker:     w.index,
		Difference: diff,
	})
	return nil
}

// scale runs the backend chain and resizes the result to the output size.
func (w *worker) scale(ctx context.Context, job pipeline.Job, out *pipeline.Buffer) error {
	w.setState(WorkerScaling)
	settings := job.Settings

	alg, err := w.algorithm(settings.Algorithm)
	if err != nil {
		return err
	}

	scale := OutputScale(job.Current.Width, job.Current.Height, settings.OutputWidth, settings.OutputHeight)
	steps, err := Decompose(scale, alg.Ratios)
	if err != nil {
		return err
	}

	start := time.Now()
	img := job.Current
	for _, ratio := range steps {
		proc, err := w.cache.get(alg, settings.Noise, ratio)
		if err != nil {
			return err
		}
		stepStart := time.Now()
		img, err = proc.Process(ctx, img)
		if err != nil {
			return fmt.Errorf("%s x%d: %w", alg.ID, ratio, err)
		}
		metrics.ObserveUpscale(alg.ID, ratio, time.Since(stepStart))
	}
	img = frame.Resize(img, settings.OutputWidth, settings.OutputHeight)
	elapsed := time.Since(start)

	w.setState(WorkerPublishing)
	if err := out.Put(job.Index, img); err != nil {
		return err
	}

	metrics.IncFramesUpscaled(alg.ID)
	w.bus.Publish(events.FrameUpscaledEvent{
		Index:      job.Index,
		Worker:     w.index,
		Steps:      steps,
		DurationMs: float64(elapsed.Microseconds()) / 1000,
	})
	w.logger.Debug("Frame upscaled", "index", job.Index, "steps", steps, "elapsed", elapsed)
	return nil
}

func (w *worker) algorithm(id string) (backend.Algorithm, error) {
	if alg, ok := w.algorithms[id]; ok {
		return alg, nil
	}
	alg, err := w.registry.Resolve(id)
	if err != nil {
		return backend.Algorithm{}, err
	}
	w.algorithms[id] = alg
	return alg, nil
}
