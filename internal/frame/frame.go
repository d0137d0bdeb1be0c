// Package frame provides the RGB24 raster used throughout the pipeline.
//
// Frames arrive from ffmpeg as packed rgb24 bytes and leave the same way, so
// Image keeps that layout instead of converting to image.RGBA on every hop.
// Image implements draw.Image, which lets golang.org/x/image/draw scale it
// directly when a faster path is not available.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// BytesPerPixel is the size of one rgb24 pixel.
const BytesPerPixel = 3

// ErrSizeMismatch is returned when a byte slice or image does not match the
// expected dimensions.
var ErrSizeMismatch = errors.New("frame size mismatch")

// Image is a packed rgb24 raster with its origin at (0,0).
// An Image must not be modified once it has been published to other goroutines.
type Image struct {
	Pix    []byte
	Width  int
	Height int
}

// New allocates a black image of the given size.
func New(width, height int) *Image {
	return &Image{
		Pix:    make([]byte, Size(width, height)),
		Width:  width,
		Height: height,
	}
}

// Size returns the number of bytes in one rgb24 frame.
func Size(width, height int) int {
	return BytesPerPixel * width * height
}

// FromBytes wraps raw rgb24 bytes without copying.
func FromBytes(width, height int, pix []byte) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if len(pix) != Size(width, height) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for %dx%d",
			ErrSizeMismatch, len(pix), Size(width, height), width, height)
	}
	return &Image{Pix: pix, Width: width, Height: height}, nil
}

// FromImage converts any image.Image to rgb24. Alpha is discarded.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	dst := New(b.Dx(), b.Dy())

	switch s := src.(type) {
	case *Image:
		copy(dst.Pix, s.Pix)
	case *image.RGBA:
		for y := 0; y < dst.Height; y++ {
			off := s.PixOffset(b.Min.X, b.Min.Y+y)
			row := s.Pix[off : off+4*dst.Width]
			out := dst.Pix[y*dst.Width*BytesPerPixel:]
			for x := 0; x < dst.Width; x++ {
				out[x*3] = row[x*4]
				out[x*3+1] = row[x*4+1]
				out[x*3+2] = row[x*4+2]
			}
		}
	default:
		for y := 0; y < dst.Height; y++ {
			for x := 0; x < dst.Width; x++ {
				r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
				i := (y*dst.Width + x) * BytesPerPixel
				dst.Pix[i] = uint8(r >> 8)
				dst.Pix[i+1] = uint8(g >> 8)
				dst.Pix[i+2] = uint8(bl >> 8)
			}
		}
	}
	return dst
}

// RGBA converts the image to *image.RGBA with opaque alpha.
func (m *Image) RGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, j := 0, 0; i < len(m.Pix); i, j = i+3, j+4 {
		dst.Pix[j] = m.Pix[i]
		dst.Pix[j+1] = m.Pix[i+1]
		dst.Pix[j+2] = m.Pix[i+2]
		dst.Pix[j+3] = 0xff
	}
	return dst
}

// Bytes returns the packed rgb24 pixel data.
func (m *Image) Bytes() []byte {
	return m.Pix
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// At implements image.Image.
func (m *Image) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(m.Bounds())) {
		return color.RGBA{}
	}
	i := (y*m.Width + x) * BytesPerPixel
	return color.RGBA{m.Pix[i], m.Pix[i+1], m.Pix[i+2], 0xff}
}

// Set implements draw.Image.
func (m *Image) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(m.Bounds())) {
		return
	}
	i := (y*m.Width + x) * BytesPerPixel
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	m.Pix[i] = rgba.R
	m.Pix[i+1] = rgba.G
	m.Pix[i+2] = rgba.B
}
