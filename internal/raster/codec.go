package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode parses an encoded image and returns the frame plus the format
// name reported by the registered decoder (png, jpeg, gif, bmp, tiff, webp).
// EXIF orientation is applied so frames match what viewers display.
func Decode(data []byte) (*Frame, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image config: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s image: %w", format, err)
	}
	return FromImage(img), format, nil
}

// Encode writes the frame in the named format. Formats imaging cannot encode
// (webp) fall back to PNG; the returned name is the format actually written.
func Encode(f *Frame, format string) ([]byte, string, error) {
	target, err := imaging.FormatFromExtension(strings.ToLower(format))
	if err != nil {
		target = imaging.PNG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, f.Image(), target, imaging.JPEGQuality(95)); err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", target, err)
	}
	return buf.Bytes(), strings.ToLower(target.String()), nil
}

// EncodePNG writes the frame as PNG.
func EncodePNG(f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeMaskPNG writes the mask as an 8-bit grayscale PNG.
func EncodeMaskPNG(m *Mask) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Image()); err != nil {
		return nil, fmt.Errorf("encode mask png: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit resizes f to width x height when its size differs. Remote services
// sometimes return results at a different resolution than they were given.
func Fit(f *Frame, width, height int) *Frame {
	if f.Width == width && f.Height == height {
		return f
	}
	resized := imaging.Resize(f.Image(), width, height, imaging.Lanczos)
	return FromImage(resized)
}
