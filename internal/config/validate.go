package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	validColorModes = []string{"gray", "red", "blue", "green", "yellow", "all", "custom"}
	validTiers      = []string{"light", "medium", "aggressive"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if !contains(validColorModes, c.Classifier.ColorMode) {
		return fmt.Errorf("classifier.color_mode must be one of %s", strings.Join(validColorModes, ", "))
	}
	if !contains(validTiers, c.Classifier.Tier) {
		return fmt.Errorf("classifier.tier must be one of %s", strings.Join(validTiers, ", "))
	}
	if c.Classifier.ColorMode == "custom" && c.Classifier.TargetColor == "" {
		return errors.New("classifier.target_color must be set when classifier.color_mode is custom")
	}
	if c.Classifier.DilateRadius < 0 {
		return errors.New("classifier.dilate_radius must be zero or positive")
	}
	for name, override := range c.Classifier.Tiers {
		if !contains(validTiers, name) {
			return fmt.Errorf("classifier.tiers.%s: unknown tier", name)
		}
		for field, value := range map[string]*int{
			"min_brightness": override.MinBrightness,
			"max_brightness": override.MaxBrightness,
			"tolerance":      override.Tolerance,
			"ink_floor":      override.InkFloor,
			"color_margin":   override.ColorMargin,
			"color_value":    override.ColorValue,
		} {
			if value != nil && (*value < 0 || *value > 255) {
				return fmt.Errorf("classifier.tiers.%s.%s must be between 0 and 255", name, field)
			}
		}
		if override.HueDistance != nil && *override.HueDistance <= 0 {
			return fmt.Errorf("classifier.tiers.%s.hue_distance must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if err := ensurePositiveMap(map[string]int{
		"inpaint.window_radius":             c.Inpaint.WindowRadius,
		"inpaint.max_passes":                c.Inpaint.MaxPasses,
		"retry.max_attempts":                c.Retry.MaxAttempts,
		"batch.concurrency":                 c.Batch.Concurrency,
		"batch.chunk_concurrency":           c.Batch.ChunkConcurrency,
		"chunking.attempts":                 c.Chunking.Attempts,
		"daemon.poll_interval_seconds":      c.Daemon.PollIntervalSeconds,
		"pipeline.assembly_timeout_seconds": c.Pipeline.AssemblyTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Retry.InitialBackoffMS < 0 || c.Retry.MaxBackoffMS < 0 {
		return errors.New("retry backoff values must not be negative")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("retry.multiplier must be at least 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		return errors.New("retry.jitter must be in [0, 1)")
	}
	if c.Chunking.MaxBytes <= 0 {
		return errors.New("chunking.max_bytes must be positive")
	}
	if c.Chunking.MaxPages < 0 {
		return errors.New("chunking.max_pages must be zero (unbounded) or positive")
	}
	if c.Document.Scale <= 0 {
		return errors.New("document.scale must be positive")
	}
	if c.Pipeline.DeadlineSeconds < 0 {
		return errors.New("pipeline.deadline_seconds must be zero (unbounded) or positive")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.FPSCap <= 0 {
		return errors.New("video.fps_cap must be positive")
	}
	if c.Video.CRF < 0 || c.Video.CRF > 51 {
		return errors.New("video.crf must be between 0 and 51")
	}
	switch c.Video.FinalEncoder {
	case "none", "drapto":
	default:
		return fmt.Errorf("video.final_encoder: unsupported value %q", c.Video.FinalEncoder)
	}
	return nil
}

func (c *Config) validateProviders() error {
	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		label := fmt.Sprintf("providers[%d]", i)
		if p.Name == "" {
			return fmt.Errorf("%s.name must be set", label)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%s: duplicate provider name %q", label, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Endpoint == "" {
			return fmt.Errorf("%s (%s).endpoint must be set", label, p.Name)
		}
		switch p.Kind {
		case "sync", "async":
		default:
			return fmt.Errorf("%s (%s).kind must be sync or async", label, p.Name)
		}
		switch p.Accepts {
		case "image", "document":
		default:
			return fmt.Errorf("%s (%s).accepts must be image or document", label, p.Name)
		}
		switch p.Encoding {
		case "json", "multipart":
		default:
			return fmt.Errorf("%s (%s).encoding must be json or multipart", label, p.Name)
		}
		if p.RequestsPerSecond < 0 {
			return fmt.Errorf("%s (%s).requests_per_second must not be negative", label, p.Name)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
