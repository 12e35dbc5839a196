package services

import (
	"errors"
	"strings"
)

// ErrorDetails is the display form of a pipeline error.
type ErrorDetails struct {
	// Kind names the sentinel that classifies the error ("decode",
	// "fatal_provider", ...) or "unknown".
	Kind string
	// Message is the error text without the sentinel prefix.
	Message string
	// Hint suggests what the user can do about it.
	Hint string
}

var markerKinds = []struct {
	marker error
	kind   string
	hint   string
}{
	{ErrPayloadTooLarge, "payload_too_large", "lower chunking.max_bytes or chunking.max_pages"},
	{ErrTransientProvider, "transient_provider", "retry later; the provider reported a temporary failure"},
	{ErrFatalProvider, "fatal_provider", "check provider credentials and endpoint configuration"},
	{ErrDecode, "decode", "the input could not be read; check that the file is a supported image, PDF, or video"},
	{ErrReassembly, "reassembly", "check ffmpeg and disk space in paths.work_dir"},
	{ErrExternalTool, "external_tool", "run 'wmclean status' to check ffmpeg, ffprobe, and pdftoppm"},
	{ErrValidation, "validation", "check the colour mode, tier, and target colour"},
	{ErrConfiguration, "configuration", "run 'wmclean config show' to review the resolved configuration"},
	{ErrNotFound, "not_found", "check that the input path exists"},
	{ErrTimeout, "timeout", "raise pipeline.deadline_seconds or retry with fewer units"},
}

// Details classifies err for logs and CLI output.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "unknown", Message: strings.TrimSpace(err.Error())}
	for _, entry := range markerKinds {
		if errors.Is(err, entry.marker) {
			details.Kind = entry.kind
			details.Hint = entry.hint
			details.Message = strings.TrimPrefix(details.Message, entry.marker.Error()+": ")
			break
		}
	}
	return details
}
