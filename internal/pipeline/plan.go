package pipeline

import (
	"fmt"
	"strconv"

	"github.com/smazurov/framescale/internal/ffmpeg"
	"github.com/smazurov/framescale/internal/frame"
	"github.com/smazurov/framescale/internal/host"
	"github.com/smazurov/framescale/internal/probe"
)

// DefaultJobsPerWorker sizes the work queue when no size is requested.
const DefaultJobsPerWorker = 4

// Request is what the operator asked for, before it is resolved against the
// probed input and the host.
type Request struct {
	Input  string
	Output string

	Width  int     // 0 derives from Height or Ratio
	Height int     // 0 derives from Width or Ratio
	Ratio  float64 // used when neither Width nor Height is set

	Noise               int
	DifferenceThreshold float64
	Algorithm           string

	Workers   int // 0 picks one per GPU or half the CPUs
	QueueSize int // 0 picks DefaultJobsPerWorker per worker

	Deinterlace bool
	Copy        ffmpeg.StreamCopy
	Codec       string
	CRF         *int // nil uses ffmpeg.DefaultCRF
	Preset      string
	PixFmt      string
	LogLevel    string // ffmpeg -loglevel
}

// Plan is a fully resolved run.
type Plan struct {
	Source    probe.Result
	Settings  Settings
	Workers   int
	GPUs      int
	QueueSize int
	Decode    ffmpeg.DecodeParams
	Encode    ffmpeg.EncodeParams
}

// BuildPlan resolves req against the probed source and host facts.
func BuildPlan(src *probe.Result, req Request, info host.Info, gpus int) (*Plan, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no source information", ErrInvalidSettings)
	}
	if req.Input == "" || req.Output == "" {
		return nil, fmt.Errorf("%w: input and output are required", ErrInvalidSettings)
	}

	width, height, err := ResolveOutputSize(src.Width, src.Height, req.Width, req.Height, req.Ratio)
	if err != nil {
		return nil, err
	}
	settings := Settings{
		OutputWidth:         width,
		OutputHeight:        height,
		Noise:               req.Noise,
		DifferenceThreshold: req.DifferenceThreshold,
		Algorithm:           req.Algorithm,
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	workers := req.Workers
	if workers <= 0 {
		workers = host.DefaultWorkers(info, gpus)
	}
	queueSize := req.QueueSize
	if queueSize <= 0 {
		queueSize = workers * DefaultJobsPerWorker
	}
	queueSize = host.QueueLimit(info, frame.Size(src.Width, src.Height), queueSize)

	rate := src.FrameRateExpr
	if rate == "" && src.FrameRate > 0 {
		rate = strconv.FormatFloat(src.FrameRate, 'f', -1, 64)
	}

	return &Plan{
		Source:    *src,
		Settings:  settings,
		Workers:   workers,
		GPUs:      gpus,
		QueueSize: queueSize,
		Decode: ffmpeg.DecodeParams{
			Input:       req.Input,
			FrameRate:   rate,
			Deinterlace: req.Deinterlace,
			LogLevel:    req.LogLevel,
		},
		Encode: ffmpeg.EncodeParams{
			Input:     req.Input,
			Output:    req.Output,
			Width:     width,
			Height:    height,
			FrameRate: rate,
			Copy:      req.Copy,
			Codec:     req.Codec,
			CRF:       req.CRF,
			Preset:    req.Preset,
			PixFmt:    req.PixFmt,
			LogLevel:  req.LogLevel,
		},
	}, nil
}
