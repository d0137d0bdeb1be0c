package frame

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func filled(w, h int, v byte) *Image {
	img := New(w, h)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		n       int
		wantErr error
	}{
		{"exact", 4, 2, 24, nil},
		{"short", 4, 2, 23, ErrSizeMismatch},
		{"long", 4, 2, 25, ErrSizeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromBytes(tt.w, tt.h, make([]byte, tt.n))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("FromBytes() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("FromBytes() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := FromBytes(0, 2, nil); err == nil {
		t.Error("FromBytes() accepted zero width")
	}
}

func TestDifferenceRatio(t *testing.T) {
	tests := []struct {
		name     string
		previous *Image
		current  *Image
		want     float64
	}{
		{"no previous frame", nil, filled(2, 2, 10), 0},
		{"identical", filled(2, 2, 10), filled(2, 2, 10), 0},
		{"black to white", filled(2, 2, 0), filled(2, 2, 255), 100},
		{"white to black", filled(2, 2, 255), filled(2, 2, 0), 100},
		{"half step", filled(2, 2, 0), filled(2, 2, 51), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DifferenceRatio(tt.previous, tt.current)
			if err != nil {
				t.Fatalf("DifferenceRatio() error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DifferenceRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDifferenceRatioSingleChannel(t *testing.T) {
	a := New(1, 1)
	b := New(1, 1)
	b.Pix[0] = 255 // red only: one channel of three at full scale

	got, err := DifferenceRatio(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := 100.0 / 3
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("DifferenceRatio() = %v, want %v", got, want)
	}
}

func TestDifferenceRatioSizeMismatch(t *testing.T) {
	_, err := DifferenceRatio(New(2, 2), New(3, 2))
	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("DifferenceRatio() error = %v, want ErrSizeMismatch", err)
	}
}

func TestResizeExactDimensions(t *testing.T) {
	sizes := []struct{ w, h int }{
		{7, 5},
		{16, 9},
		{1, 1},
		{3, 40},
	}

	src := filled(8, 6, 200)
	for _, s := range sizes {
		got := Resize(src, s.w, s.h)
		if got.Width != s.w || got.Height != s.h {
			t.Errorf("Resize(%dx%d) = %dx%d", s.w, s.h, got.Width, got.Height)
		}
		if len(got.Pix) != Size(s.w, s.h) {
			t.Errorf("Resize(%dx%d) pix len = %d", s.w, s.h, len(got.Pix))
		}
	}
}

func TestResizeSameSizeReturnsSource(t *testing.T) {
	src := filled(4, 4, 1)
	if got := Resize(src, 4, 4); got != src {
		t.Error("Resize() to identical size should return the source image")
	}
}

func TestResizeUniformColorPreserved(t *testing.T) {
	got := Resize(filled(4, 4, 128), 10, 10)
	for i, v := range got.Pix {
		if v < 127 || v > 129 {
			t.Fatalf("pixel byte %d = %d, want ~128", i, v)
		}
	}
}

func TestRGBARoundTrip(t *testing.T) {
	src := New(3, 2)
	for i := range src.Pix {
		src.Pix[i] = byte(i * 7)
	}

	back := FromImage(src.RGBA())
	if !bytes.Equal(back.Pix, src.Pix) {
		t.Errorf("RGBA round trip changed pixels")
	}
}

func TestFromImageGeneric(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 255})

	got := FromImage(src)
	want := []byte{10, 20, 30, 40, 50, 60}
	if !bytes.Equal(got.Pix, want) {
		t.Errorf("FromImage() = %v, want %v", got.Pix, want)
	}
}

func TestPNGRoundTrip(t *testing.T) {
	src := New(5, 3)
	for i := range src.Pix {
		src.Pix[i] = byte(i * 11)
	}

	var buf bytes.Buffer
	if err := EncodePNG(&buf, src); err != nil {
		t.Fatalf("EncodePNG() error: %v", err)
	}
	got, err := DecodePNG(&buf)
	if err != nil {
		t.Fatalf("DecodePNG() error: %v", err)
	}
	if !bytes.Equal(got.Pix, src.Pix) {
		t.Error("PNG round trip changed pixels")
	}
}

func TestSetAndAt(t *testing.T) {
	img := New(2, 2)
	img.Set(1, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	if c := img.At(1, 1).(color.RGBA); c.R != 1 || c.G != 2 || c.B != 3 {
		t.Errorf("At(1,1) = %v", c)
	}
	// Out of bounds writes are ignored.
	img.Set(5, 5, color.White)
}
