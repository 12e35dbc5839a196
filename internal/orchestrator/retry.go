package orchestrator

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"wmclean/internal/config"
)

// RetryPolicy bounds how often a transient provider failure is retried and
// how long to wait between calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls per provider, including the first.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter randomizes each delay by +/- this fraction.
	Jitter float64
}

// DefaultRetryPolicy matches the shipped configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
		Jitter:         0.1,
	}
}

// PolicyFromConfig converts the [retry] section.
func PolicyFromConfig(cfg config.Retry) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: time.Duration(cfg.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.MaxBackoffMS) * time.Millisecond,
		Multiplier:     cfg.Multiplier,
		Jitter:         cfg.Jitter,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// schedule returns a fresh exponential schedule. It never gives up on its
// own; the attempt count is enforced by the caller.
func (p RetryPolicy) schedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
