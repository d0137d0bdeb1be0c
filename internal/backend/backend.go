// Package backend defines the super-resolution processor contract and the
// registry that maps algorithm identifiers to processor families.
//
// A Processor scales one image by a ratio fixed at construction. Construction
// is expensive (model load, GPU context) so callers cache processors; see the
// upscale package.
//
// Algorithm identifiers are either a family name ("waifu2x") or, for
// multi-model families, "<family>-<model>" ("superres-lapsrn").
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/smazurov/framescale/internal/frame"
)

// Errors returned by the registry and processors.
var (
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrUnknownModel     = errors.New("unknown model")
	ErrInvalidParams    = errors.New("invalid backend parameters")
	ErrNoExecutable     = errors.New("no executable configured")
	ErrUnexpectedSize   = errors.New("backend returned unexpected size")
)

// Noise levels accepted by processors. -1 disables denoising.
const (
	MinNoise = -1
	MaxNoise = 3
)

// CPU is the GPU index that selects CPU execution.
const CPU = -1

// Processor scales a single image by its construction ratio.
type Processor interface {
	Process(ctx context.Context, img *frame.Image) (*frame.Image, error)
}

// Params configures a Processor instance.
type Params struct {
	GPU   int
	Noise int
	Ratio int
	Model string
}

// Constructor builds a Processor for one ratio.
type Constructor func(params Params) (Processor, error)

// Family describes a backend family and the fixed ratios it supports.
// Multi-model families list ratios per model and leave Ratios empty.
type Family struct {
	Name   string
	Ratios []int
	Models map[string][]int
	New    Constructor
	Check  func() error // optional, reports whether New can succeed at all
}

// Algorithm is a resolved algorithm identifier.
type Algorithm struct {
	ID     string
	Family *Family
	Model  string
	Ratios []int // sorted ascending
}

// NewProcessor constructs a processor for ratio on the given GPU.
func (a Algorithm) NewProcessor(gpu, noise, ratio int) (Processor, error) {
	if err := a.Validate(Params{GPU: gpu, Noise: noise, Ratio: ratio, Model: a.Model}); err != nil {
		return nil, err
	}
	return a.Family.New(Params{GPU: gpu, Noise: noise, Ratio: ratio, Model: a.Model})
}

// Check runs the family's availability check, if it has one. It lets a run
// fail before any process is started rather than on the first frame.
func (a Algorithm) Check() error {
	if a.Family.Check == nil {
		return nil
	}
	return a.Family.Check()
}

// Validate checks params against the algorithm's constraints.
func (a Algorithm) Validate(p Params) error {
	if p.GPU < CPU {
		return fmt.Errorf("%w: gpu must be >= %d, got %d", ErrInvalidParams, CPU, p.GPU)
	}
	if p.Noise < MinNoise || p.Noise > MaxNoise {
		return fmt.Errorf("%w: noise must be in [%d, %d], got %d", ErrInvalidParams, MinNoise, MaxNoise, p.Noise)
	}
	if !slices.Contains(a.Ratios, p.Ratio) {
		return fmt.Errorf("%w: ratio %d not supported by %s %v", ErrInvalidParams, p.Ratio, a.ID, a.Ratios)
	}
	return nil
}
