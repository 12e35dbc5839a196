package services_test

import (
	"errors"
	"strings"
	"testing"

	"wmclean/internal/queue"
	"wmclean/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrReassembly, "document", "compose", "page count mismatch", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrReassembly) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"document", "compose", "page count mismatch"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestFailureStatusMapping(t *testing.T) {
	decodeErr := services.Wrap(services.ErrDecode, "image", "decode", "unsupported format", nil)
	if status := services.FailureStatus(decodeErr); status != queue.StatusRejected {
		t.Fatalf("expected rejected for decode error, got %s", status)
	}

	reassembly := services.Wrap(services.ErrReassembly, "video", "mux", "ffmpeg failed", errors.New("exit 1"))
	if status := services.FailureStatus(reassembly); status != queue.StatusFailed {
		t.Fatalf("expected failed for reassembly error, got %s", status)
	}

	if status := services.FailureStatus(nil); status != queue.StatusFailed {
		t.Fatalf("expected failed for nil error, got %s", status)
	}
}

func TestMarkerPrefersMostSpecific(t *testing.T) {
	err := services.Wrap(services.ErrPayloadTooLarge, "remote", "submit", "413", nil)
	if marker := services.Marker(err); marker != services.ErrPayloadTooLarge {
		t.Fatalf("unexpected marker %v", marker)
	}
	if marker := services.Marker(errors.New("plain")); marker != nil {
		t.Fatalf("expected nil marker, got %v", marker)
	}
}

func TestDetailsStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrFatalProvider, "orchestrator", "process document", "all document providers failed", nil)
	details := services.Details(err)
	if details.Kind != "fatal_provider" {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Message != "orchestrator: process document: all document providers failed" {
		t.Fatalf("unexpected message %q", details.Message)
	}
	if details.Hint == "" {
		t.Fatal("expected hint")
	}

	plain := services.Details(errors.New("disk full"))
	if plain.Kind != "unknown" || plain.Message != "disk full" {
		t.Fatalf("unexpected plain details %+v", plain)
	}
	if (services.Details(nil) != services.ErrorDetails{}) {
		t.Fatal("nil error should have empty details")
	}
}
