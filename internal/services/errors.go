package services

import (
	"errors"
	"fmt"
	"strings"

	"wmclean/internal/queue"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")

	// Provider outcomes. A transient failure may succeed on retry, a fatal one
	// will not, and a payload-too-large failure may succeed with a smaller input.
	ErrTransientProvider = errors.New("transient provider failure")
	ErrFatalProvider     = errors.New("fatal provider failure")
	ErrPayloadTooLarge   = errors.New("payload too large")

	ErrDecode     = errors.New("decode error")
	ErrReassembly = errors.New("reassembly error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransientProvider
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a pipeline error to the queue status the workflow manager
// should persist after a job fails.
func FailureStatus(err error) queue.Status {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrDecode):
		return queue.StatusRejected
	default:
		return queue.StatusFailed
	}
}

// Marker returns the sentinel that classifies err, or nil when err carries none.
func Marker(err error) error {
	for _, marker := range []error{
		ErrPayloadTooLarge,
		ErrTransientProvider,
		ErrFatalProvider,
		ErrDecode,
		ErrReassembly,
		ErrExternalTool,
		ErrValidation,
		ErrConfiguration,
		ErrNotFound,
		ErrTimeout,
	} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
