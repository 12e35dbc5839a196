package deps

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func writeFFmpegStub(t *testing.T, listing string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\ncat <<'OUT'\n" + listing + "\nOUT\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	return path
}

func TestCheckFFmpegEncoder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	listing := `Encoders:
 V..... = Video
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)`
	stub := writeFFmpegStub(t, listing)

	if status := CheckFFmpegEncoder(context.Background(), stub, "libx264"); !status.Available {
		t.Fatalf("expected libx264 available, got %q", status.Detail)
	}
	status := CheckFFmpegEncoder(context.Background(), stub, "libsvtav1")
	if status.Available || status.Detail == "" {
		t.Fatalf("expected libsvtav1 missing with detail, got %#v", status)
	}
	if status := CheckFFmpegEncoder(context.Background(), "clearly-not-present-ffmpeg", "libx264"); status.Available {
		t.Fatal("expected missing binary to be unavailable")
	}
}

func TestHasEncoderIgnoresDescriptions(t *testing.T) {
	if hasEncoder(" V....D libx265   uses libx264 internals", "libx264") {
		t.Fatal("encoder names must match the name column only")
	}
	if !hasEncoder(" V....D libx265   x265", "libx265") {
		t.Fatal("expected libx265 to match")
	}
}
