package ffmpeg

import (
	"fmt"
	"strconv"
)

// Base returns the ffmpeg executable with standard flags.
func Base() []string {
	return []string{"ffmpeg", "-hide_banner", "-nostats"}
}

// DecodeArgs builds the argv for the decoding process.
func DecodeArgs(p DecodeParams) []string {
	args := Base()
	args = append(args, "-nostdin", "-loglevel", levelFlag(p.LogLevel))
	args = appendProgress(args, p.Progress)

	if p.FrameRate != "" {
		args = append(args, "-r", p.FrameRate)
	}
	args = append(args, "-i", p.Input, "-map", "0:v:0")

	if p.Deinterlace {
		args = append(args, "-vf", "yadif")
	}

	return append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-fps_mode", "cfr",
		"-y", "pipe:1",
	)
}

// EncodeArgs builds the argv for the encoding process.
func EncodeArgs(p EncodeParams) []string {
	args := Base()
	args = append(args, "-loglevel", levelFlag(p.LogLevel), "-y")
	args = appendProgress(args, p.Progress)

	// Input 0: upscaled frames
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
	)
	if p.FrameRate != "" {
		args = append(args, "-r", p.FrameRate)
	}
	args = append(args, "-i", "pipe:0")

	// Input 1: original source for auxiliary streams
	args = append(args, "-i", p.Input, "-map", "0:v:0")
	if p.Copy.Audio {
		args = append(args, "-map", "1:a?", "-c:a", "copy")
	}
	if p.Copy.Subtitle {
		args = append(args, "-map", "1:s?", "-c:s", "copy")
	}
	if p.Copy.Data {
		args = append(args, "-map", "1:d?", "-c:d", "copy")
	}
	if p.Copy.Attachments {
		args = append(args, "-map", "1:t?")
	}

	args = append(args,
		"-c:v", orDefault(p.Codec, DefaultCodec),
		"-crf", strconv.Itoa(crf(p.CRF)),
		"-preset", orDefault(p.Preset, DefaultPreset),
		"-pix_fmt", orDefault(p.PixFmt, DefaultPixFmt),
		"-fps_mode", "cfr",
	)
	if p.FrameRate != "" {
		args = append(args, "-r", p.FrameRate)
	}

	return append(args,
		"-map_metadata", "1",
		"-metadata", "comment="+orDefault(p.Comment, DefaultComment),
		p.Output,
	)
}

// Env returns extra environment entries for ffmpeg processes.
// Color codes would end up verbatim in relayed log lines.
func Env() []string {
	return []string{"AV_LOG_FORCE_NOCOLOR=1"}
}

func levelFlag(level string) string {
	if level == "" {
		level = "info"
	}
	return "level+" + level
}

func appendProgress(args []string, url string) []string {
	if url == "" {
		return args
	}
	return append(args, "-progress", url)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func crf(v *int) int {
	if v == nil {
		return DefaultCRF
	}
	return *v
}
