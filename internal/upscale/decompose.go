package upscale

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrNoRatios is returned when an algorithm offers no ratio that can make
// progress towards the requested scale.
var ErrNoRatios = errors.New("no usable scaling ratios")

// OutputScale is the factor the source must be scaled by so that both
// dimensions reach the output size.
func OutputScale(srcWidth, srcHeight, outWidth, outHeight int) float64 {
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0
	}
	return max(float64(outWidth)/float64(srcWidth), float64(outHeight)/float64(srcHeight))
}

// Decompose picks the chain of backend ratios used to reach scale.
//
// The required factor is rounded up to an integer. Each round takes the
// smallest single ratio that covers what remains, else the first pair (outer
// and inner ascending) whose product covers it, else the largest ratio, and
// divides the remainder by what it took. A scale of at most 1 still runs the
// smallest ratio once, since some backends also denoise.
func Decompose(scale float64, ratios []int) ([]int, error) {
	if len(ratios) == 0 {
		return nil, ErrNoRatios
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("invalid scale %g", scale)
	}

	sorted := slices.Clone(ratios)
	slices.Sort(sorted)
	if sorted[0] < 1 {
		return nil, fmt.Errorf("%w: ratio %d", ErrNoRatios, sorted[0])
	}

	remaining := math.Ceil(scale)
	if remaining <= 1 {
		return []int{sorted[0]}, nil
	}

	largest := sorted[len(sorted)-1]
	if largest <= 1 {
		return nil, fmt.Errorf("%w: %v cannot scale by %g", ErrNoRatios, ratios, scale)
	}

	var steps []int
	for remaining > 1 {
		if r, ok := firstSingle(sorted, remaining); ok {
			steps = append(steps, r)
			remaining /= float64(r)
			continue
		}
		if i, j, ok := firstPair(sorted, remaining); ok {
			steps = append(steps, i, j)
			remaining /= float64(i * j)
			continue
		}
		steps = append(steps, largest)
		remaining /= float64(largest)
	}
	return steps, nil
}

func firstSingle(sorted []int, remaining float64) (int, bool) {
	for _, r := range sorted {
		if float64(r) >= remaining {
			return r, true
		}
	}
	return 0, false
}

func firstPair(sorted []int, remaining float64) (int, int, bool) {
	for _, i := range sorted {
		for _, j := range sorted {
			if float64(i*j) >= remaining {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}
