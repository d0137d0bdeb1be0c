// Package probe reads the properties of an input video with ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoVideoStream is returned when the input has no decodable video stream.
var ErrNoVideoStream = errors.New("no video stream")

// Result describes the primary video stream of an input.
type Result struct {
	Path          string  `json:"path"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FrameRate     float64 `json:"frame_rate"`
	FrameRateExpr string  `json:"frame_rate_expr"` // as reported, e.g. "30000/1001"
	TotalFrames   int     `json:"total_frames"`
	Duration      float64 `json:"duration_seconds"`
	HasAudio      bool    `json:"has_audio"`
	HasSubtitles  bool    `json:"has_subtitles"`
}

// Probe runs a single ffprobe JSON call against path.
func Probe(ctx context.Context, path string) (*Result, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	res, err := ParseJSON(out)
	if err != nil {
		return nil, err
	}
	res.Path = path
	return res, nil
}

// ParseJSON converts raw ffprobe JSON output into a Result.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*Result, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	res := &Result{}
	var video *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil && s.Disposition["attached_pic"] != 1 {
				video = s
			}
		case "audio":
			res.HasAudio = true
		case "subtitle":
			res.HasSubtitles = true
		}
	}
	if video == nil {
		return nil, ErrNoVideoStream
	}

	res.Width = video.Width
	res.Height = video.Height
	res.FrameRateExpr = video.AvgFrameRate
	if res.FrameRateExpr == "" || res.FrameRateExpr == "0/0" {
		res.FrameRateExpr = video.RFrameRate
	}
	res.FrameRate = ParseRate(res.FrameRateExpr)

	res.Duration = parseFloat(video.Duration)
	if res.Duration == 0 {
		res.Duration = parseFloat(raw.Format.Duration)
	}

	res.TotalFrames = parseInt(video.NbFrames)
	if res.TotalFrames == 0 && res.Duration > 0 && res.FrameRate > 0 {
		res.TotalFrames = int(math.Round(res.Duration * res.FrameRate))
	}

	return res, nil
}

// ParseRate parses an ffprobe rational ("30000/1001") or decimal rate.
func ParseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	Index        int            `json:"index"`
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	RFrameRate   string         `json:"r_frame_rate"`
	NbFrames     string         `json:"nb_frames"`
	Duration     string         `json:"duration"`
	Disposition  map[string]int `json:"disposition"`
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}
