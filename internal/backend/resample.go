package backend

import (
	"context"

	"github.com/smazurov/framescale/internal/frame"
)

// NewResample constructs a pure-Go processor that scales with Catmull-Rom
// interpolation. It needs no GPU and ignores the noise level.
func NewResample(params Params) (Processor, error) {
	return &resampleProcessor{ratio: params.Ratio}, nil
}

type resampleProcessor struct {
	ratio int
}

func (p *resampleProcessor) Process(ctx context.Context, img *frame.Image) (*frame.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return frame.Resize(img, img.Width*p.ratio, img.Height*p.ratio), nil
}
