package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/framescale/cmd"
	"github.com/smazurov/framescale/internal/api"
	"github.com/smazurov/framescale/internal/config"
	"github.com/smazurov/framescale/internal/events"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/smazurov/framescale/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config      string `doc:"Path to configuration file" short:"c" default:"framescale.toml"`
	WatchConfig bool   `doc:"Reload log levels when the configuration file changes" default:"false" toml:"run.watch_config" env:"WATCH_CONFIG"`

	// Input and output
	Input  string `doc:"Input video file" short:"i" toml:"run.input" env:"INPUT"`
	Output string `doc:"Output video file" short:"o" toml:"run.output" env:"OUTPUT"`

	// Output size
	Width  int    `doc:"Output width, 0 derives it from height or ratio" default:"0" toml:"output.width" env:"WIDTH"`
	Height int    `doc:"Output height, 0 derives it from width or ratio" default:"0" toml:"output.height" env:"HEIGHT"`
	Ratio  string `doc:"Scale ratio used when neither width nor height is set" short:"r" default:"2" toml:"output.ratio" env:"RATIO"`

	// Upscaling settings
	Algorithm           string `doc:"Upscaling algorithm (waifu2x, srmd, realsr, realcugan, superres-<model>, resample)" short:"a" default:"waifu2x" toml:"upscale.algorithm" env:"ALGORITHM"`
	Noise               int    `doc:"Denoise level from -1 to 3" short:"n" default:"3" toml:"upscale.noise" env:"NOISE"`
	DifferenceThreshold string `doc:"Frames differing from their predecessor by less than this percentage reuse its result, 0 disables" default:"0" toml:"upscale.difference_threshold" env:"DIFFERENCE_THRESHOLD"`
	Workers             int    `doc:"Upscaling workers, 0 picks one per GPU or half the CPUs" short:"w" default:"0" toml:"upscale.workers" env:"WORKERS"`
	QueueSize           int    `doc:"Decoded frames buffered for the workers, 0 picks four per worker" default:"0" toml:"upscale.queue_size" env:"QUEUE_SIZE"`

	// Decoder settings
	Deinterlace bool `doc:"Deinterlace the input with yadif" default:"false" toml:"decode.deinterlace" env:"DEINTERLACE"`

	// Encoder settings
	Codec            string `doc:"Output video codec" default:"libx264" toml:"encode.codec" env:"CODEC"`
	CRF              int    `doc:"Constant rate factor" default:"17" toml:"encode.crf" env:"CRF"`
	Preset           string `doc:"Encoder preset" default:"veryslow" toml:"encode.preset" env:"PRESET"`
	PixFmt           string `doc:"Output pixel format" default:"yuv420p" toml:"encode.pix_fmt" env:"PIX_FMT"`
	CopyAudio        bool   `doc:"Copy audio streams from the input" default:"true" toml:"encode.copy_audio" env:"COPY_AUDIO"`
	CopySubtitles    bool   `doc:"Copy subtitle streams from the input" default:"true" toml:"encode.copy_subtitles" env:"COPY_SUBTITLES"`
	CopyData         bool   `doc:"Copy data streams from the input" default:"false" toml:"encode.copy_data" env:"COPY_DATA"`
	CopyAttachments  bool   `doc:"Copy attachments from the input" default:"false" toml:"encode.copy_attachments" env:"COPY_ATTACHMENTS"`
	FFmpegProgress   bool   `name:"ffmpeg-progress" doc:"Collect ffmpeg -progress output as metrics" default:"true" toml:"metrics.ffmpeg_progress" env:"FFMPEG_PROGRESS"`
	GracefulTimeoutS int    `name:"graceful-timeout" doc:"Seconds to wait for ffmpeg after SIGINT before killing it" default:"10" toml:"process.graceful_timeout" env:"GRACEFUL_TIMEOUT"`

	// Control API
	Listen       string `doc:"Address of the control API, empty disables it" short:"l" default:"" toml:"server.listen" env:"SERVER_LISTEN"`
	AuthUsername string `doc:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `doc:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Terminal output
	Quiet bool `doc:"Do not render the progress bar" short:"q" default:"false" toml:"run.quiet" env:"QUIET"`

	// Logging settings
	LoggingLevel    string `doc:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `doc:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingDecoder  string `doc:"Decoder logging level" default:"" toml:"logging.decoder" env:"LOGGING_DECODER"`
	LoggingEncoder  string `doc:"Encoder logging level" default:"" toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingUpscaler string `doc:"Upscaler logging level" default:"" toml:"logging.upscaler" env:"LOGGING_UPSCALER"`
	LoggingBackend  string `doc:"Backend logging level" default:"" toml:"logging.backend" env:"LOGGING_BACKEND"`
	LoggingFFmpeg   string `name:"logging-ffmpeg" doc:"ffmpeg output logging level, also sets ffmpeg -loglevel" default:"" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI      string `doc:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
}

// loggingConfig merges the [logging] table with the module flags. Empty
// module flags fall back to the global level.
func (o *Options) loggingConfig() logging.Config {
	cfg := config.LoadLoggingConfig(o.Config)
	cfg.Level = o.LoggingLevel
	cfg.Format = o.LoggingFormat

	for module, level := range map[string]string{
		"decoder":  o.LoggingDecoder,
		"encoder":  o.LoggingEncoder,
		"upscaler": o.LoggingUpscaler,
		"backend":  o.LoggingBackend,
		"ffmpeg":   o.LoggingFFmpeg,
		"api":      o.LoggingAPI,
	} {
		if level != "" {
			cfg.Modules[module] = level
		}
	}
	return cfg
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		// Every log line also becomes an event for /api/logs/stream
		eventBus := events.New()
		logging.OnEntry(api.LogPublisher(eventBus))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)
			err := run(ctx, opts, eventBus)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				logger.Info("Run cancelled")
			default:
				logger.Error("Run failed", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()

			select {
			case <-done:
			case <-time.After(time.Duration(opts.GracefulTimeoutS+5) * time.Second):
				logger.Warn("Timed out waiting for the pipeline to stop")
			}
		})
	})

	cli.Root().Use = "framescale"
	cli.Root().Short = "Upscale a video frame by frame"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateGPUsCmd())
	cli.Root().AddCommand(cmd.CreateAlgorithmsCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreatePlanCmd())

	cli.Run()
}
