package frame

import "fmt"

// DifferenceRatio returns the mean absolute per-channel difference between
// two equally sized images as a percentage of full scale (0-100).
// A nil previous image yields 0.
func DifferenceRatio(previous, current *Image) (float64, error) {
	if previous == nil {
		return 0, nil
	}
	if previous.Width != current.Width || previous.Height != current.Height {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch,
			previous.Width, previous.Height, current.Width, current.Height)
	}
	if len(current.Pix) == 0 {
		return 0, nil
	}

	var sum uint64
	a, b := previous.Pix, current.Pix
	for i := range b {
		if a[i] > b[i] {
			sum += uint64(a[i] - b[i])
		} else {
			sum += uint64(b[i] - a[i])
		}
	}

	mean := float64(sum) / float64(len(b))
	return mean / 255 * 100, nil
}
