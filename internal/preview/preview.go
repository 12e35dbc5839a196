// Package preview renders a watermark mask over its source image so the
// classifier settings can be checked before anything is repaired.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"wmclean/internal/raster"
)

// Options controls the overlay appearance.
type Options struct {
	// Color is the overlay colour as a hex string.
	Color string
	// Opacity of masked pixels in [0, 1].
	Opacity float64
	// Caption is drawn in a banner at the bottom; empty disables the banner.
	Caption string
}

// DefaultOptions paints masked pixels translucent magenta.
func DefaultOptions() Options {
	return Options{Color: "#ff00ff", Opacity: 0.55}
}

// Render draws mask over frame.
func Render(frame *raster.Frame, mask *raster.Mask, opts Options) (image.Image, error) {
	if frame == nil || mask == nil {
		return nil, fmt.Errorf("preview requires a frame and a mask")
	}
	if frame.Width != mask.Width || frame.Height != mask.Height {
		return nil, fmt.Errorf("mask is %dx%d but frame is %dx%d", mask.Width, mask.Height, frame.Width, frame.Height)
	}
	if opts.Color == "" {
		opts.Color = DefaultOptions().Color
	}
	if opts.Opacity <= 0 || opts.Opacity > 1 {
		opts.Opacity = DefaultOptions().Opacity
	}

	dc := gg.NewContextForImage(frame.Image())
	r, g, b := hexRGB(opts.Color)
	dc.SetRGBA(r, g, b, opts.Opacity)
	for y := 0; y < mask.Height; y++ {
		// Runs of masked pixels become one rectangle each.
		start := -1
		for x := 0; x <= mask.Width; x++ {
			on := x < mask.Width && mask.At(x, y)
			switch {
			case on && start < 0:
				start = x
			case !on && start >= 0:
				dc.DrawRectangle(float64(start), float64(y), float64(x-start), 1)
				start = -1
			}
		}
	}
	dc.Fill()

	if opts.Caption != "" {
		drawCaption(dc, opts.Caption)
	}
	return dc.Image(), nil
}

// RenderPNG is Render encoded as PNG.
func RenderPNG(frame *raster.Frame, mask *raster.Mask, opts Options) ([]byte, error) {
	img, err := Render(frame, mask, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// Caption summarises a mask for the preview banner.
func Caption(mode, tier string, mask *raster.Mask) string {
	return fmt.Sprintf("%s / %s: %d px (%.1f%%)", mode, tier, mask.Count(), mask.Coverage()*100)
}

func drawCaption(dc *gg.Context, text string) {
	const pad = 4.0
	_, textHeight := dc.MeasureString(text)
	bannerHeight := textHeight + 2*pad
	width := float64(dc.Width())
	height := float64(dc.Height())
	if bannerHeight > height {
		return
	}
	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawRectangle(0, height-bannerHeight, width, bannerHeight)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, pad, height-pad, 0, 0)
}

func hexRGB(hex string) (float64, float64, float64) {
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return 1, 0, 1
	}
	return c.R, c.G, c.B
}
