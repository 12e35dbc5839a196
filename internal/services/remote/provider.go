package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wmclean/internal/services"
)

// Payload is one submission to a provider.
type Payload struct {
	// Data is a PNG image or a PDF document, depending on what the provider accepts.
	Data        []byte
	ContentType string
	// Mask is an optional white-on-black PNG marking the region to repaint.
	Mask []byte
}

// Outcome classifies a provider call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTransient
	OutcomeFatal
	OutcomeTooLarge
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	case OutcomeTooLarge:
		return "too_large"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what every provider call returns. Data is set only on success.
type Result struct {
	Outcome    Outcome
	Data       []byte
	Reason     string
	StatusCode int
}

// OK reports whether the call produced usable bytes.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess && len(r.Data) > 0
}

// Err converts a failed result into an error tagged with the matching marker.
func (r Result) Err(provider string) error {
	var marker error
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeTransient:
		marker = services.ErrTransientProvider
	case OutcomeTooLarge:
		marker = services.ErrPayloadTooLarge
	default:
		marker = services.ErrFatalProvider
	}
	return services.Wrap(marker, "remote", provider, r.Reason, nil)
}

func success(data []byte) Result {
	if len(data) == 0 {
		return fatal(0, "provider returned an empty result")
	}
	return Result{Outcome: OutcomeSuccess, Data: data}
}

func transient(status int, format string, args ...any) Result {
	return Result{Outcome: OutcomeTransient, StatusCode: status, Reason: fmt.Sprintf(format, args...)}
}

func fatal(status int, format string, args ...any) Result {
	return Result{Outcome: OutcomeFatal, StatusCode: status, Reason: fmt.Sprintf(format, args...)}
}

// Provider is a remote inpainting service. Implementations never return Go
// errors; every failure is reported through Result.Outcome.
type Provider interface {
	Name() string
	Remove(ctx context.Context, payload Payload) Result
}

// mentionsTooLarge catches services that report size limits in the body of
// an otherwise generic error.
func mentionsTooLarge(text string) bool {
	lower := strings.ToLower(text)
	for _, needle := range []string{"too large", "too big", "payload size", "exceeds the maximum", "request entity"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

var errMalformedDataURI = errors.New("malformed data uri")
