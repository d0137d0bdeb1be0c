package upscale

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/framescale/internal/backend"
	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/gpu"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/pipeline"
)

// Pool errors.
var (
	ErrNoWorkers  = errors.New("worker count must be positive")
	ErrNoRegistry = errors.New("no backend registry")
)

// Options configures a Pool.
type Options struct {
	Registry     *backend.Registry
	Workers      int
	GPUs         int // detected GPU count, 0 runs every worker on the CPU
	PollInterval time.Duration
	Bus          *events.Bus
}

// Pool is a fixed set of upscaling workers. It implements pipeline.Scaler.
type Pool struct {
	opts    Options
	logger  logging.Logger
	workers []*worker
	skipped atomic.Int64
}

var _ pipeline.Scaler = (*Pool)(nil)

// NewPool creates a pool. Worker i is assigned GPU i mod GPUs.
func NewPool(opts Options) (*Pool, error) {
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}
	if opts.Workers <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoWorkers, opts.Workers)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = pipeline.DefaultPollInterval
	}

	p := &Pool{
		opts:   opts,
		logger: logging.GetLogger("upscaler"),
	}
	for i := range opts.Workers {
		p.workers = append(p.workers, newWorker(i, gpu.Assign(i, opts.GPUs), opts.Registry, opts.Bus, opts.PollInterval))
	}
	return p, nil
}

// Run starts every worker and blocks until all have stopped. The first
// worker error stops the others.
func (p *Pool) Run(ctx context.Context, jobs <-chan pipeline.Job, out *pipeline.Buffer, pause *pipeline.Pause) error {
	if pause == nil {
		pause = pipeline.NewPause()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.logger.Info("Starting workers", "workers", len(p.workers), "gpus", p.opts.GPUs)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	onSkip := func() { p.skipped.Add(1) }
	for _, w := range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.run(ctx, jobs, out, pause, onSkip)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			cancel()
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	return ctx.Err()
}

// Skipped returns the number of frames that reused the previous result.
func (p *Pool) Skipped() int {
	return int(p.skipped.Load())
}

// WorkerStates returns the current state of every worker.
func (p *Pool) WorkerStates() []WorkerState {
	states := make([]WorkerState, len(p.workers))
	for i, w := range p.workers {
		states[i] = w.State()
	}
	return states
}
