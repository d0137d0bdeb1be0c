package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/smazurov/framescale/internal/api"
	"github.com/smazurov/framescale/internal/backend"
	"github.com/smazurov/framescale/internal/config"
	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/ffmpeg"
	"github.com/smazurov/framescale/internal/gpu"
	"github.com/smazurov/framescale/internal/host"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/metrics/collectors"
	"github.com/smazurov/framescale/internal/metrics/exporters"
	"github.com/smazurov/framescale/internal/pipeline"
	"github.com/smazurov/framescale/internal/probe"
	"github.com/smazurov/framescale/internal/progress"
	"github.com/smazurov/framescale/internal/upscale"
)

// request turns the CLI options into a pipeline request.
func (o *Options) request() (pipeline.Request, error) {
	ratio, err := strconv.ParseFloat(o.Ratio, 64)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("%w: ratio %q", pipeline.ErrInvalidSettings, o.Ratio)
	}
	threshold, err := strconv.ParseFloat(o.DifferenceThreshold, 64)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("%w: difference threshold %q", pipeline.ErrInvalidSettings, o.DifferenceThreshold)
	}

	ffmpegLevel := o.LoggingFFmpeg
	if ffmpegLevel == "" {
		ffmpegLevel = o.LoggingLevel
	}

	return pipeline.Request{
		Input:               o.Input,
		Output:              o.Output,
		Width:               o.Width,
		Height:              o.Height,
		Ratio:               ratio,
		Noise:               o.Noise,
		DifferenceThreshold: threshold,
		Algorithm:           o.Algorithm,
		Workers:             o.Workers,
		QueueSize:           o.QueueSize,
		Deinterlace:         o.Deinterlace,
		Copy: ffmpeg.StreamCopy{
			Audio:       o.CopyAudio,
			Subtitle:    o.CopySubtitles,
			Data:        o.CopyData,
			Attachments: o.CopyAttachments,
		},
		Codec:    o.Codec,
		CRF:      &o.CRF,
		Preset:   o.Preset,
		PixFmt:   o.PixFmt,
		LogLevel: ffmpeg.LogLevelFor(ffmpegLevel),
	}, nil
}

// run plans and executes one upscaling run, blocking until it ends.
func run(ctx context.Context, opts *Options, bus *events.Bus) error {
	logger := logging.GetLogger("main")

	if opts.Input == "" || opts.Output == "" {
		return fmt.Errorf("%w: --input and --output are required", pipeline.ErrInvalidSettings)
	}
	req, err := opts.request()
	if err != nil {
		return err
	}

	src, err := probe.Probe(ctx, opts.Input)
	if err != nil {
		return fmt.Errorf("probe %s: %w", opts.Input, err)
	}
	logger.Info("Probed input", "path", src.Path, "width", src.Width, "height", src.Height,
		"fps", src.FrameRate, "frames", src.TotalFrames)

	info, err := host.Collect(ctx)
	if err != nil {
		logger.Warn("Failed to read host resources", "error", err)
	}

	gpus := 0
	if devices, detectErr := gpu.Detect(ctx); detectErr != nil {
		logger.Warn("GPU discovery failed, workers run on the CPU", "error", detectErr)
	} else {
		gpus = len(devices)
		for _, d := range devices {
			logger.Debug("Found GPU", "index", d.Index, "name", d.Name)
		}
	}

	plan, err := pipeline.BuildPlan(src, req, info, gpus)
	if err != nil {
		return err
	}
	logger.Info("Planned run", "algorithm", plan.Settings.Algorithm,
		"output", fmt.Sprintf("%dx%d", plan.Settings.OutputWidth, plan.Settings.OutputHeight),
		"workers", plan.Workers, "gpus", plan.GPUs, "queue", plan.QueueSize)

	backends, err := config.LoadBackends(opts.Config)
	if err != nil {
		return fmt.Errorf("load backends: %w", err)
	}

	workDir, err := os.MkdirTemp("", "framescale-*")
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	registry := backend.DefaultRegistry(backends, workDir)
	// Fail before any process is spawned
	alg, err := registry.Resolve(plan.Settings.Algorithm)
	if err != nil {
		return err
	}
	if err := alg.Check(); err != nil {
		return err
	}

	pool, err := upscale.NewPool(upscale.Options{
		Registry: registry,
		Workers:  plan.Workers,
		GPUs:     plan.GPUs,
		Bus:      bus,
	})
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(plan, pool, pipeline.RunnerOptions{
		Bus:             bus,
		GracefulTimeout: time.Duration(opts.GracefulTimeoutS) * time.Second,
		Progress:        opts.FFmpegProgress,
		ProgressDir:     workDir,
	})

	hostCollector := collectors.NewHostCollector()
	if startErr := hostCollector.Start(ctx); startErr != nil {
		logger.Warn("Failed to start host metrics", "error", startErr)
	}
	defer hostCollector.Stop()

	sseExporter := exporters.NewSSEExporter(bus)
	sseExporter.Start(ctx)
	defer sseExporter.Stop()

	if opts.Listen != "" {
		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Controller:        runner,
			EventBus:          bus,
			PrometheusHandler: exporters.HTTPHandler(),
		})
		go func() {
			if startErr := server.Start(opts.Listen); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
			}
		}()
		defer func() {
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
		}()
	}

	if opts.WatchConfig {
		watcher, watchErr := config.WatchFile(opts.Config, nil)
		if watchErr != nil {
			logger.Warn("Failed to watch config file", "path", opts.Config, "error", watchErr)
		} else {
			defer watcher.Stop()
		}
	}

	if !opts.Quiet {
		bar := progress.New(bus, progress.Options{Total: plan.Source.TotalFrames})
		bar.Start(ctx)
		defer bar.Stop()
	}

	stopToggle := togglePauseOnSignal(ctx, runner.Pause(), syscall.SIGUSR1)
	defer stopToggle()

	return runner.Run(ctx)
}

// togglePauseOnSignal flips pause each time sig arrives until ctx is done or
// the returned stop function is called.
func togglePauseOnSignal(ctx context.Context, pause *pipeline.Pause, sig os.Signal) func() {
	logger := logging.GetLogger("main")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sig)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				paused := pause.Toggle()
				logger.Info("Pause toggled by signal", "signal", sig.String(), "paused", paused)
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		cancel()
		<-done
	}
}
