package detect

import (
	"fmt"
	"strings"
)

// Tier selects how much of the brightness range counts as watermark.
type Tier string

const (
	TierLight      Tier = "light"
	TierMedium     Tier = "medium"
	TierAggressive Tier = "aggressive"
)

// ParseTier accepts a case-insensitive tier name.
func ParseTier(value string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(value))); t {
	case TierLight, TierMedium, TierAggressive:
		return t, nil
	case "":
		return TierMedium, nil
	default:
		return "", fmt.Errorf("unknown tier %q", value)
	}
}

// Thresholds bounds which pixels a colour mode may flag. Brightness is the
// mean of R, G, and B; variation is max minus min of the three.
type Thresholds struct {
	// MinBrightness and MaxBrightness bound the gray band.
	MinBrightness int
	MaxBrightness int
	// Tolerance is the largest channel variation still considered gray.
	Tolerance int
	// InkFloor is the brightness below which no mode flags a pixel.
	InkFloor int
	// ColorMargin is how far a dominant channel must exceed the others.
	ColorMargin int
	// ColorValue is the minimum value of the dominant channel.
	ColorValue int
	// HueDistance is the Lab distance accepted by the custom mode.
	HueDistance float64
}

var defaultThresholds = map[Tier]Thresholds{
	TierLight: {
		MinBrightness: 180, MaxBrightness: 245, Tolerance: 15,
		InkFloor: 140, ColorMargin: 60, ColorValue: 190, HueDistance: 0.10,
	},
	TierMedium: {
		MinBrightness: 160, MaxBrightness: 250, Tolerance: 25,
		InkFloor: 110, ColorMargin: 50, ColorValue: 180, HueDistance: 0.15,
	},
	TierAggressive: {
		MinBrightness: 130, MaxBrightness: 254, Tolerance: 40,
		InkFloor: 85, ColorMargin: 35, ColorValue: 160, HueDistance: 0.22,
	},
}

// DefaultThresholds returns the built-in thresholds for tier. Unknown tiers
// get the medium values.
func DefaultThresholds(tier Tier) Thresholds {
	if th, ok := defaultThresholds[tier]; ok {
		return th
	}
	return defaultThresholds[TierMedium]
}

// Validate checks ordering constraints between fields.
func (t Thresholds) Validate() error {
	if t.MinBrightness > t.MaxBrightness {
		return fmt.Errorf("min brightness %d exceeds max brightness %d", t.MinBrightness, t.MaxBrightness)
	}
	if t.InkFloor > t.MinBrightness {
		return fmt.Errorf("ink floor %d exceeds min brightness %d", t.InkFloor, t.MinBrightness)
	}
	if t.Tolerance < 0 || t.ColorMargin < 0 {
		return fmt.Errorf("tolerance and colour margin must not be negative")
	}
	return nil
}
