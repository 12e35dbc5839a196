package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Frame is a decoded raster in row-major order. Channels is 4 (RGBA) for
// frames built by this package; 3-channel RGB buffers are accepted as input.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewFrame allocates a zeroed RGBA frame.
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Channels: 4, Pix: make([]uint8, width*height*4)}
}

// Validate reports whether the pixel buffer matches the declared geometry.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("frame is nil")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame has invalid size %dx%d", f.Width, f.Height)
	}
	if f.Channels != 3 && f.Channels != 4 {
		return fmt.Errorf("frame has unsupported channel count %d", f.Channels)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pix) != want {
		return fmt.Errorf("frame buffer is %d bytes, want %d", len(f.Pix), want)
	}
	return nil
}

// Offset returns the index of the first channel of pixel (x, y).
func (f *Frame) Offset(x, y int) int {
	return (y*f.Width + x) * f.Channels
}

// RGB returns the colour channels of pixel (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := f.Offset(x, y)
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	pix := make([]uint8, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Channels: f.Channels, Pix: pix}
}

// FromImage converts any image into an RGBA frame. Alpha is kept but
// colour values are not premultiplied.
func FromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != bounds.Dx()*4 {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}
	pix := make([]uint8, len(nrgba.Pix))
	copy(pix, nrgba.Pix)
	return &Frame{Width: bounds.Dx(), Height: bounds.Dy(), Channels: 4, Pix: pix}
}

// Image returns the frame as an *image.NRGBA sharing no memory with f.
func (f *Frame) Image() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	if f.Channels == 4 {
		copy(out.Pix, f.Pix)
		return out
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := f.RGB(x, y)
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 0xff})
		}
	}
	return out
}
