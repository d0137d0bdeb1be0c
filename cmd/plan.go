package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smazurov/framescale/internal/backend"
	"github.com/smazurov/framescale/internal/config"
	"github.com/smazurov/framescale/internal/ffmpeg"
	"github.com/smazurov/framescale/internal/gpu"
	"github.com/smazurov/framescale/internal/host"
	"github.com/smazurov/framescale/internal/pipeline"
	"github.com/smazurov/framescale/internal/probe"
	"github.com/smazurov/framescale/internal/upscale"
	"github.com/spf13/cobra"
)

// CreatePlanCmd creates the plan command.
func CreatePlanCmd() *cobra.Command {
	var (
		req        pipeline.Request
		configFile string
		probeJSON  string
		gpus       int
	)

	cmd := &cobra.Command{
		Use:   "plan [input] [output]",
		Short: "Show how a run would be executed",
		Long: `Resolves the output size, worker count, queue size and backend ratio chain for a run ` +
			`and prints the ffmpeg command lines, without starting any process.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Input, req.Output = args[0], args[1]

			var (
				src *probe.Result
				err error
			)
			if probeJSON != "" {
				data, readErr := os.ReadFile(probeJSON)
				if readErr != nil {
					return readErr
				}
				src, err = probe.ParseJSON(data)
			} else {
				src, err = probe.Probe(cmd.Context(), req.Input)
			}
			if err != nil {
				return err
			}

			info, err := host.Collect(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Host resources unavailable: %v\n", err)
			}
			if gpus < 0 {
				gpus = gpu.Count(cmd.Context())
			}

			backends, err := config.LoadBackends(configFile)
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), src, req, info, gpus, backend.DefaultRegistry(backends, os.TempDir()))
		},
	}

	f := cmd.Flags()
	f.IntVar(&req.Width, "width", 0, "Output width, 0 derives it from height or ratio")
	f.IntVar(&req.Height, "height", 0, "Output height, 0 derives it from width or ratio")
	f.Float64VarP(&req.Ratio, "ratio", "r", 2, "Scale ratio used when neither width nor height is set")
	f.StringVarP(&req.Algorithm, "algorithm", "a", "waifu2x", "Upscaling algorithm")
	f.IntVarP(&req.Noise, "noise", "n", 3, "Denoise level from -1 to 3")
	f.Float64Var(&req.DifferenceThreshold, "difference-threshold", 0, "Skip threshold in percent")
	f.IntVarP(&req.Workers, "workers", "w", 0, "Upscaling workers, 0 picks a default")
	f.IntVar(&req.QueueSize, "queue-size", 0, "Work queue size, 0 picks a default")
	f.BoolVar(&req.Deinterlace, "deinterlace", false, "Deinterlace the input")
	f.BoolVar(&req.Copy.Audio, "copy-audio", true, "Copy audio streams from the input")
	f.BoolVar(&req.Copy.Subtitle, "copy-subtitles", true, "Copy subtitle streams from the input")
	f.BoolVar(&req.Copy.Data, "copy-data", false, "Copy data streams from the input")
	f.BoolVar(&req.Copy.Attachments, "copy-attachments", false, "Copy attachments from the input")
	req.CRF = f.Int("crf", ffmpeg.DefaultCRF, "Constant rate factor")
	f.IntVar(&gpus, "gpus", -1, "GPU count to plan for, -1 detects them")
	f.StringVar(&probeJSON, "ffprobe-json", "", "Read ffprobe -print_format json output from a file instead of running ffprobe")
	f.StringVarP(&configFile, "config", "c", "framescale.toml", "Configuration file with [backends] overrides")

	return cmd
}

func printPlan(w io.Writer, src *probe.Result, req pipeline.Request, info host.Info, gpus int, registry *backend.Registry) error {
	plan, err := pipeline.BuildPlan(src, req, info, gpus)
	if err != nil {
		return err
	}
	alg, err := registry.Resolve(plan.Settings.Algorithm)
	if err != nil {
		return err
	}
	scale := upscale.OutputScale(src.Width, src.Height, plan.Settings.OutputWidth, plan.Settings.OutputHeight)
	steps, err := upscale.Decompose(scale, alg.Ratios)
	if err != nil {
		return err
	}

	total := "unknown"
	if src.TotalFrames > 0 {
		total = fmt.Sprint(src.TotalFrames)
	}
	fmt.Fprintf(w, "input:      %dx%d @ %s fps, %s frames\n", src.Width, src.Height, plan.Decode.FrameRate, total)
	fmt.Fprintf(w, "output:     %dx%d (x%.3f)\n", plan.Settings.OutputWidth, plan.Settings.OutputHeight, scale)
	fmt.Fprintf(w, "algorithm:  %s, steps %s, noise %d\n", alg.ID, formatRatios(steps), plan.Settings.Noise)
	fmt.Fprintf(w, "workers:    %d on %d GPUs, queue %d\n", plan.Workers, plan.GPUs, plan.QueueSize)
	fmt.Fprintf(w, "threshold:  %g%%\n", plan.Settings.DifferenceThreshold)
	fmt.Fprintf(w, "decode:     %s\n", strings.Join(ffmpeg.DecodeArgs(plan.Decode), " "))
	fmt.Fprintf(w, "encode:     %s\n", strings.Join(ffmpeg.EncodeArgs(plan.Encode), " "))
	return nil
}
