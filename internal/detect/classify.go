package detect

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"wmclean/internal/raster"
)

// ColorMode selects which pixel hues are treated as watermark.
type ColorMode string

const (
	ModeGray   ColorMode = "gray"
	ModeRed    ColorMode = "red"
	ModeBlue   ColorMode = "blue"
	ModeGreen  ColorMode = "green"
	ModeYellow ColorMode = "yellow"
	ModeAll    ColorMode = "all"
	// ModeCustom flags pixels close to a configured target colour.
	ModeCustom ColorMode = "custom"
)

// ParseColorMode accepts a case-insensitive mode name.
func ParseColorMode(value string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(value))); m {
	case ModeGray, ModeRed, ModeBlue, ModeGreen, ModeYellow, ModeAll, ModeCustom:
		return m, nil
	case "":
		return ModeGray, nil
	default:
		return "", fmt.Errorf("unknown color mode %q", value)
	}
}

// Classifier builds watermark masks from frames. It is immutable and safe for
// concurrent use.
type Classifier struct {
	mode       ColorMode
	thresholds Thresholds
	target     colorful.Color
}

// NewClassifier validates its inputs. targetHex is only consulted in custom mode.
func NewClassifier(mode ColorMode, thresholds Thresholds, targetHex string) (*Classifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{mode: mode, thresholds: thresholds}
	if mode == ModeCustom {
		target, err := colorful.Hex(strings.TrimSpace(targetHex))
		if err != nil {
			return nil, fmt.Errorf("parse target colour %q: %w", targetHex, err)
		}
		c.target = target
	}
	return c, nil
}

// Mode returns the configured colour mode.
func (c *Classifier) Mode() ColorMode { return c.mode }

// Thresholds returns the configured thresholds.
func (c *Classifier) Thresholds() Thresholds { return c.thresholds }

// Classify returns the mask of watermark candidates in f.
func (c *Classifier) Classify(f *raster.Frame) *raster.Mask {
	m := raster.NewMask(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := f.RGB(x, y)
			if c.Match(r, g, b) {
				m.Bits[y*f.Width+x] = true
			}
		}
	}
	return m
}

// Match reports whether a single pixel is a watermark candidate.
func (c *Classifier) Match(r, g, b uint8) bool {
	th := c.thresholds
	ri, gi, bi := int(r), int(g), int(b)
	brightness := (ri + gi + bi) / 3
	if brightness < th.InkFloor {
		return false
	}
	switch c.mode {
	case ModeGray:
		return isGray(ri, gi, bi, brightness, th, true)
	case ModeRed:
		return dominates(ri, gi, bi, th)
	case ModeGreen:
		return dominates(gi, ri, bi, th)
	case ModeBlue:
		return dominates(bi, ri, gi, th)
	case ModeYellow:
		return isYellow(ri, gi, bi, th)
	case ModeAll:
		return isGray(ri, gi, bi, brightness, th, false) ||
			dominates(ri, gi, bi, th) ||
			dominates(gi, ri, bi, th) ||
			dominates(bi, ri, gi, th) ||
			isYellow(ri, gi, bi, th)
	case ModeCustom:
		px := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
		return px.DistanceLab(c.target) <= th.HueDistance
	default:
		return false
	}
}

// isGray applies the low-variation test. When bounded is false the upper
// brightness limit is dropped so near-white overlays are caught too.
func isGray(r, g, b, brightness int, th Thresholds, bounded bool) bool {
	if max3(r, g, b)-min3(r, g, b) > th.Tolerance {
		return false
	}
	if brightness < th.MinBrightness {
		return false
	}
	return !bounded || brightness <= th.MaxBrightness
}

func dominates(channel, other1, other2 int, th Thresholds) bool {
	return channel >= th.ColorValue && channel-max(other1, other2) >= th.ColorMargin
}

func isYellow(r, g, b int, th Thresholds) bool {
	low := min(r, g)
	return low >= th.ColorValue && low-b >= th.ColorMargin
}

func max3(a, b, c int) int { return max(a, max(b, c)) }

func min3(a, b, c int) int { return min(a, min(b, c)) }
