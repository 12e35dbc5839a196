package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeClassifier()
	c.normalizeVideo()
	c.normalizeProviders()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeClassifier() {
	c.Classifier.ColorMode = strings.ToLower(strings.TrimSpace(c.Classifier.ColorMode))
	if c.Classifier.ColorMode == "" {
		c.Classifier.ColorMode = defaultColorMode
	}
	c.Classifier.Tier = strings.ToLower(strings.TrimSpace(c.Classifier.Tier))
	if c.Classifier.Tier == "" {
		c.Classifier.Tier = defaultTier
	}
	c.Classifier.TargetColor = strings.TrimSpace(c.Classifier.TargetColor)
	if len(c.Classifier.Tiers) > 0 {
		tiers := make(map[string]TierOverride, len(c.Classifier.Tiers))
		for name, override := range c.Classifier.Tiers {
			tiers[strings.ToLower(strings.TrimSpace(name))] = override
		}
		c.Classifier.Tiers = tiers
	}
}

func (c *Config) normalizeVideo() {
	c.Video.FinalEncoder = strings.ToLower(strings.TrimSpace(c.Video.FinalEncoder))
	if c.Video.FinalEncoder == "" {
		c.Video.FinalEncoder = defaultFinalEncoder
	}
	if strings.TrimSpace(c.Video.FFmpegBinary) == "" {
		c.Video.FFmpegBinary = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Video.FFprobeBinary) == "" {
		c.Video.FFprobeBinary = defaultFFprobeBinary
	}
	if strings.TrimSpace(c.Document.PdftoppmBinary) == "" {
		c.Document.PdftoppmBinary = defaultPdftoppmBinary
	}
}

// normalizeProviders fills per-provider defaults and resolves API keys from
// the environment when api_key is blank.
func (c *Config) normalizeProviders() {
	for i := range c.Providers {
		p := &c.Providers[i]
		p.Name = strings.TrimSpace(p.Name)
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if p.Kind == "" {
			p.Kind = "sync"
		}
		p.Accepts = strings.ToLower(strings.TrimSpace(p.Accepts))
		if p.Accepts == "" {
			p.Accepts = "image"
		}
		p.Encoding = strings.ToLower(strings.TrimSpace(p.Encoding))
		if p.Encoding == "" {
			p.Encoding = "json"
		}
		p.Endpoint = strings.TrimSpace(p.Endpoint)
		p.PollEndpoint = strings.TrimSpace(p.PollEndpoint)
		if strings.TrimSpace(p.APIKey) == "" && strings.TrimSpace(p.APIKeyEnv) != "" {
			if value, ok := os.LookupEnv(strings.TrimSpace(p.APIKeyEnv)); ok {
				p.APIKey = strings.TrimSpace(value)
			}
		}
		if p.AuthHeader == "" {
			p.AuthHeader = "Authorization"
		}
		if p.AuthScheme == "" && p.AuthHeader == "Authorization" {
			p.AuthScheme = "Bearer"
		}
		if p.ImageField == "" {
			p.ImageField = "image"
		}
		if p.MaskField == "" {
			p.MaskField = "mask"
		}
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultProviderTimeoutSeconds
		}
		if p.PollIntervalMS <= 0 {
			p.PollIntervalMS = defaultPollIntervalMS
		}
		if p.PollAttempts <= 0 {
			p.PollAttempts = defaultPollAttempts
		}
	}
}
