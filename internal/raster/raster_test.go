package raster

import (
	"image"
	"image/color"
	"slices"
	"testing"
)

func TestFrameRoundTripThroughPNG(t *testing.T) {
	f := NewFrame(3, 2)
	for i := range f.Pix {
		f.Pix[i] = uint8(i * 10)
	}
	for i := 3; i < len(f.Pix); i += 4 {
		f.Pix[i] = 0xff
	}

	data, err := EncodePNG(f)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	decoded, format, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if format != "png" {
		t.Fatalf("format = %q", format)
	}
	if decoded.Width != f.Width || decoded.Height != f.Height || !slices.Equal(decoded.Pix, f.Pix) {
		t.Fatalf("decoded frame differs: %v vs %v", decoded.Pix, f.Pix)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, err := Decode([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEncodeFallsBackToPNGForWebP(t *testing.T) {
	f := NewFrame(2, 2)
	_, format, err := Encode(f, "webp")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if format != "png" {
		t.Fatalf("expected png fallback, got %q", format)
	}
	_, format, err = Encode(f, "jpeg")
	if err != nil {
		t.Fatalf("Encode jpeg: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("expected jpeg, got %q", format)
	}
}

func TestFromImageHandlesRGBFrameAndOffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 6))
	src.Set(5, 5, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	f := FromImage(src)
	if f.Width != 2 || f.Height != 1 {
		t.Fatalf("unexpected size %dx%d", f.Width, f.Height)
	}
	if r, g, b := f.RGB(0, 0); r != 200 || g != 100 || b != 50 {
		t.Fatalf("unexpected pixel %d %d %d", r, g, b)
	}

	rgb := &Frame{Width: 1, Height: 1, Channels: 3, Pix: []uint8{1, 2, 3}}
	if err := rgb.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := rgb.Image().NRGBAAt(0, 0); got != (color.NRGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Fatalf("unexpected converted pixel %v", got)
	}
}

func TestMaskImageIsWhiteOnBlack(t *testing.T) {
	m := NewMask(4, 3)
	m.Set(1, 1, true)
	m.Set(3, 2, true)
	img := m.Image()
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			want := uint8(0)
			if m.At(x, y) {
				want = 0xff
			}
			if got := img.GrayAt(x, y).Y; got != want {
				t.Fatalf("pixel (%d,%d) = %d want %d", x, y, got, want)
			}
		}
	}
	if m.Count() != 2 || m.Empty() {
		t.Fatalf("unexpected count %d", m.Count())
	}
	if m.At(-1, 0) || m.At(4, 0) {
		t.Fatal("out of range pixels must read unmasked")
	}
}

func TestFitResizesOnlyWhenNeeded(t *testing.T) {
	f := NewFrame(4, 4)
	if got := Fit(f, 4, 4); got != f {
		t.Fatal("expected same frame when size matches")
	}
	if got := Fit(f, 8, 2); got.Width != 8 || got.Height != 2 {
		t.Fatalf("unexpected resized geometry %dx%d", got.Width, got.Height)
	}
}
