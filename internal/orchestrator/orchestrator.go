package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"wmclean/internal/inpaint"
	"wmclean/internal/logging"
	"wmclean/internal/metrics"
	"wmclean/internal/raster"
	"wmclean/internal/services"
	"wmclean/internal/services/remote"
)

// Source records how a unit was repaired.
type Source string

const (
	SourceSkipped Source = "skipped"
	SourceRemote  Source = "remote"
	SourceLocal   Source = "local"
)

// Report describes one orchestrated call.
type Report struct {
	Source   Source
	Provider string
	Attempts int
	Retries  int
	// Failures lists "provider: reason" for every call that did not succeed.
	Failures []string
	Fill     inpaint.Stats
}

// Orchestrator walks the configured providers in order, retrying transient
// failures, and falls back to local inpainting when none succeed.
type Orchestrator struct {
	images    []remote.Provider
	documents []remote.Provider
	policy    RetryPolicy
	fill      inpaint.Options
	sleeper   func(time.Duration)
	logger    *slog.Logger
	metrics   *metrics.Recorder
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDocumentProviders sets the providers that accept whole PDF documents.
func WithDocumentProviders(providers []remote.Provider) Option {
	return func(o *Orchestrator) { o.documents = providers }
}

// WithFillOptions tunes the local inpainter.
func WithFillOptions(opts inpaint.Options) Option {
	return func(o *Orchestrator) { o.fill = opts }
}

// WithSleeper replaces the backoff wait (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(o *Orchestrator) { o.sleeper = sleeper }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = rec }
}

// New constructs an orchestrator over image-capable providers.
func New(images []remote.Provider, policy RetryPolicy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		images: images,
		policy: policy,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "orchestrator")
	return o
}

// HasDocumentProviders reports whether whole-document submission is possible.
func (o *Orchestrator) HasDocumentProviders() bool {
	return len(o.documents) > 0
}

// Process repairs the masked region of frame and never fails. A nil mask
// sends the bare frame to the providers, which then find the watermark
// themselves; there is nothing to fill locally in that case. A provider that
// finds a single raster too large is skipped like any other fatal answer,
// since splitting cannot shrink one frame.
func (o *Orchestrator) Process(ctx context.Context, frame *raster.Frame, mask *raster.Mask) (*raster.Frame, Report) {
	var report Report
	if mask != nil && mask.Empty() {
		report.Source = SourceSkipped
		return frame.Clone(), report
	}
	logger := logging.WithContext(ctx, o.logger)

	if len(o.images) > 0 {
		payload, err := buildPayload(frame, mask)
		if err != nil {
			logger.Warn("could not encode unit for remote providers; using local fill",
				logging.Error(err),
				logging.String(logging.FieldEventType, "encode_failed"),
				logging.String(logging.FieldErrorHint, "the frame could not be written as PNG"),
				logging.String(logging.FieldImpact, "unit repaired locally"),
			)
		} else {
			var repaired *raster.Frame
			accept := func(data []byte) error {
				decoded, _, err := raster.Decode(data)
				if err != nil {
					return err
				}
				repaired = raster.Fit(decoded, frame.Width, frame.Height)
				return nil
			}
			if name, _ := o.run(ctx, o.images, payload, accept, &report, false); name != "" {
				report.Source = SourceRemote
				report.Provider = name
				return repaired, report
			}
		}
	}

	if mask == nil {
		report.Source = SourceSkipped
		logging.WarnWithContext(logger, "no mask and no provider result; unit left unchanged", "unit_unchanged",
			logging.Int("attempts", report.Attempts),
			logging.String(logging.FieldImpact, "watermark left in place"),
		)
		return frame.Clone(), report
	}

	out, stats := inpaint.Fill(frame, mask, o.fill)
	report.Source = SourceLocal
	report.Fill = stats
	o.metrics.LocalFallback()
	if len(o.images) > 0 {
		logging.WarnWithContext(logger, "remote providers exhausted; used local fill", "local_fallback",
			logging.Int("attempts", report.Attempts),
			logging.Int("masked_pixels", stats.Masked),
			logging.Int("unfilled_pixels", stats.Unfilled),
		)
	}
	return out, report
}

// ProcessDocument submits a whole document to the document providers. There
// is no local fallback: exhaustion returns an error marked transient or fatal,
// and a too-large response returns services.ErrPayloadTooLarge so the caller
// can split the document.
func (o *Orchestrator) ProcessDocument(ctx context.Context, doc []byte) ([]byte, Report, error) {
	var report Report
	if len(o.documents) == 0 {
		return nil, report, services.Wrap(services.ErrConfiguration, "orchestrator", "process document", "no document providers configured", nil)
	}
	var result []byte
	accept := func(data []byte) error {
		result = data
		return nil
	}
	payload := remote.Payload{Data: doc, ContentType: "application/pdf"}
	name, err := o.run(ctx, o.documents, payload, accept, &report, true)
	if err != nil {
		return nil, report, err
	}
	if name == "" {
		if ctx.Err() != nil {
			return nil, report, services.Wrap(services.ErrTransientProvider, "orchestrator", "process document", "cancelled", ctx.Err())
		}
		return nil, report, services.Wrap(services.ErrFatalProvider, "orchestrator", "process document",
			fmt.Sprintf("all document providers failed after %d calls", report.Attempts), nil)
	}
	report.Source = SourceRemote
	report.Provider = name
	return result, report, nil
}

// run tries each provider in order and returns the name of the provider whose
// result accept took, or "" when every provider was exhausted or the context
// ended. With stopOnTooLarge a too-large answer ends the walk with
// ErrPayloadTooLarge; otherwise that provider is skipped.
func (o *Orchestrator) run(ctx context.Context, providers []remote.Provider, payload remote.Payload, accept func([]byte) error, report *Report, stopOnTooLarge bool) (string, error) {
	logger := logging.WithContext(ctx, o.logger)
	maxAttempts := o.policy.attempts()

	for _, provider := range providers {
		name := provider.Name()
		schedule := o.policy.schedule()
	attempts:
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if ctx.Err() != nil {
				return "", nil
			}
			started := time.Now()
			res := provider.Remove(ctx, payload)
			report.Attempts++
			o.metrics.ProviderCall(name, res.Outcome.String(), time.Since(started))

			switch res.Outcome {
			case remote.OutcomeSuccess:
				if !res.OK() {
					report.Failures = append(report.Failures, name+": empty result")
					logger.Info("provider returned an empty result; trying next", logging.Provider(name))
					break attempts
				}
				if err := accept(res.Data); err != nil {
					report.Failures = append(report.Failures, name+": unusable result: "+err.Error())
					logger.Info("provider result rejected",
						logging.Provider(name),
						logging.Error(err),
					)
					break attempts
				}
				logger.Debug("provider succeeded",
					logging.Provider(name),
					logging.Int("attempt", attempt),
					logging.Int("result_bytes", len(res.Data)),
				)
				return name, nil
			case remote.OutcomeTooLarge:
				report.Failures = append(report.Failures, name+": "+res.Reason)
				if stopOnTooLarge {
					return "", res.Err(name)
				}
				logger.Info("payload too large for provider; trying next",
					logging.Provider(name),
					logging.Int("payload_bytes", len(payload.Data)),
				)
				break attempts
			case remote.OutcomeFatal:
				report.Failures = append(report.Failures, name+": "+res.Reason)
				logger.Info("provider failed; trying next",
					logging.Provider(name),
					logging.String("reason", res.Reason),
				)
				break attempts
			default:
				report.Failures = append(report.Failures, name+": "+res.Reason)
				if attempt == maxAttempts {
					logger.Info("provider retries exhausted; trying next",
						logging.Provider(name),
						logging.Int("attempts", attempt),
						logging.String("reason", res.Reason),
					)
					break attempts
				}
				delay := schedule.NextBackOff()
				if delay == backoff.Stop {
					break attempts
				}
				report.Retries++
				o.metrics.Retry(name)
				logger.Debug("transient provider failure; retrying",
					logging.Provider(name),
					logging.Int("attempt", attempt),
					logging.Duration("delay", delay),
					logging.String("reason", res.Reason),
				)
				if err := o.wait(ctx, delay); err != nil {
					return "", nil
				}
			}
		}
	}
	return "", nil
}

func (o *Orchestrator) wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.sleeper != nil {
		o.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func buildPayload(frame *raster.Frame, mask *raster.Mask) (remote.Payload, error) {
	data, err := raster.EncodePNG(frame)
	if err != nil {
		return remote.Payload{}, err
	}
	payload := remote.Payload{Data: data, ContentType: "image/png"}
	if mask == nil {
		return payload, nil
	}
	if payload.Mask, err = raster.EncodeMaskPNG(mask); err != nil {
		return remote.Payload{}, err
	}
	return payload, nil
}

// IsTooLarge reports whether err asks the caller to shrink its input.
func IsTooLarge(err error) bool {
	return errors.Is(err, services.ErrPayloadTooLarge)
}
