package remote

import (
	"fmt"
	"time"

	"wmclean/internal/config"
)

// SettingsFromConfig converts a provider config block into Settings.
func SettingsFromConfig(p config.Provider) Settings {
	return Settings{
		Name:              p.Name,
		Endpoint:          p.Endpoint,
		PollEndpoint:      p.PollEndpoint,
		APIKey:            p.APIKey,
		AuthHeader:        p.AuthHeader,
		AuthScheme:        p.AuthScheme,
		Encoding:          p.Encoding,
		InputKey:          p.InputKey,
		ImageField:        p.ImageField,
		MaskField:         p.MaskField,
		Extra:             p.Extra,
		Timeout:           time.Duration(p.TimeoutSeconds) * time.Second,
		PollInterval:      time.Duration(p.PollIntervalMS) * time.Millisecond,
		PollAttempts:      p.PollAttempts,
		RequestsPerSecond: p.RequestsPerSecond,
	}
}

// New builds the provider described by a config block.
func New(p config.Provider, opts ...Option) (Provider, error) {
	settings := SettingsFromConfig(p)
	switch p.Kind {
	case "sync", "":
		return NewSyncProvider(settings, opts...), nil
	case "async":
		return NewAsyncProvider(settings, opts...), nil
	default:
		return nil, fmt.Errorf("provider %s: unsupported kind %q", p.Name, p.Kind)
	}
}

// NewAll builds providers in order.
func NewAll(blocks []config.Provider, opts ...Option) ([]Provider, error) {
	out := make([]Provider, 0, len(blocks))
	for _, block := range blocks {
		provider, err := New(block, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, provider)
	}
	return out, nil
}
