package pipeline

import (
	"wmclean/internal/config"
	"wmclean/internal/detect"
)

// thresholdsFor applies the [classifier.tiers.<tier>] overrides to the
// built-in thresholds.
func thresholdsFor(cfg config.Classifier, tier detect.Tier) detect.Thresholds {
	th := detect.DefaultThresholds(tier)
	override, ok := cfg.Tiers[string(tier)]
	if !ok {
		return th
	}
	setInt(&th.MinBrightness, override.MinBrightness)
	setInt(&th.MaxBrightness, override.MaxBrightness)
	setInt(&th.Tolerance, override.Tolerance)
	setInt(&th.InkFloor, override.InkFloor)
	setInt(&th.ColorMargin, override.ColorMargin)
	setInt(&th.ColorValue, override.ColorValue)
	if override.HueDistance != nil {
		th.HueDistance = *override.HueDistance
	}
	return th
}

func setInt(dst *int, value *int) {
	if value != nil {
		*dst = *value
	}
}
