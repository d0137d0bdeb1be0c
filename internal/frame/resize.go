package frame

import (
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// Resize scales src to exactly width x height using Catmull-Rom resampling,
// the highest quality kernel x/image/draw ships. src is returned unchanged
// when it already has the requested size.
func Resize(src *Image, width, height int) *Image {
	return ResizeWith(draw.CatmullRom, src, width, height)
}

// ResizeWith scales src with the given interpolator.
func ResizeWith(scaler draw.Scaler, src *Image, width, height int) *Image {
	if src.Width == width && src.Height == height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Bounds(), src.RGBA(), src.Bounds(), draw.Src, nil)
	return FromImage(dst)
}

// EncodePNG writes img as an opaque PNG.
func EncodePNG(w io.Writer, img *Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img.RGBA())
}

// DecodePNG reads a PNG and converts it to rgb24.
func DecodePNG(r io.Reader) (*Image, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}
