package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/smazurov/framescale/internal/frame"
)

// Noise level bounds accepted by the backends.
const (
	MinNoise = -1
	MaxNoise = 3
)

// Settings errors.
var (
	ErrInvalidSettings = errors.New("invalid processing settings")
	ErrNoOutputSize    = errors.New("output size requires a width, a height or a ratio")
)

// Settings are the processing settings of one run. A single value is shared
// by pointer across every job and must not be modified once the run starts.
type Settings struct {
	OutputWidth         int
	OutputHeight        int
	Noise               int
	DifferenceThreshold float64 // percent, 0 disables the skip path
	Algorithm           string  // family or family-model, e.g. "superres-lapsrn"
}

// Validate checks ranges before any process is spawned.
func (s Settings) Validate() error {
	switch {
	case s.OutputWidth <= 0 || s.OutputHeight <= 0:
		return fmt.Errorf("%w: output size %dx%d", ErrInvalidSettings, s.OutputWidth, s.OutputHeight)
	case s.Noise < MinNoise || s.Noise > MaxNoise:
		return fmt.Errorf("%w: noise %d not in [%d,%d]", ErrInvalidSettings, s.Noise, MinNoise, MaxNoise)
	case s.DifferenceThreshold < 0 || s.DifferenceThreshold > 100:
		return fmt.Errorf("%w: difference threshold %g not in [0,100]", ErrInvalidSettings, s.DifferenceThreshold)
	case s.Algorithm == "":
		return fmt.Errorf("%w: no algorithm", ErrInvalidSettings)
	}
	return nil
}

// OutputFrameSize is the number of bytes in one output frame.
func (s Settings) OutputFrameSize() int {
	return frame.Size(s.OutputWidth, s.OutputHeight)
}

// ResolveOutputSize derives the output dimensions from the source size.
// Explicit width and height win. With only one of them, the other follows the
// source aspect ratio. Otherwise ratio scales both. Derived dimensions are
// rounded to even numbers, which yuv420p encoders require.
func ResolveOutputSize(srcWidth, srcHeight, width, height int, ratio float64) (int, int, error) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0, fmt.Errorf("%w: source size %dx%d", ErrInvalidSettings, srcWidth, srcHeight)
	}
	if width < 0 || height < 0 || ratio < 0 {
		return 0, 0, fmt.Errorf("%w: negative output size", ErrInvalidSettings)
	}

	switch {
	case width > 0 && height > 0:
		return width, height, nil
	case width > 0:
		return width, even(float64(srcHeight) * float64(width) / float64(srcWidth)), nil
	case height > 0:
		return even(float64(srcWidth) * float64(height) / float64(srcHeight)), height, nil
	case ratio > 0:
		return even(float64(srcWidth) * ratio), even(float64(srcHeight) * ratio), nil
	default:
		return 0, 0, ErrNoOutputSize
	}
}

func even(v float64) int {
	n := int(math.Round(v))
	if n%2 != 0 {
		n++
	}
	return max(2, n)
}
