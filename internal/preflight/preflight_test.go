package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wmclean/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	base := config.Provider{Name: "lama", Kind: "sync", Accepts: "image", Endpoint: srv.URL, APIKey: "k"}

	if result := CheckProvider(context.Background(), base); !result.Passed {
		t.Fatalf("any HTTP answer should pass, got %q", result.Detail)
	}

	noKey := base
	noKey.APIKey = ""
	noKey.APIKeyEnv = "LAMA_TOKEN"
	result := CheckProvider(context.Background(), noKey)
	if result.Passed || !strings.Contains(result.Detail, "LAMA_TOKEN") {
		t.Fatalf("expected missing key naming the env var, got %+v", result)
	}

	disabled := noKey
	disabled.Disabled = true
	if result := CheckProvider(context.Background(), disabled); !result.Passed {
		t.Fatal("disabled providers should not fail status")
	}

	down := base
	srvDown := httptest.NewServer(http.NotFoundHandler())
	down.Endpoint = srvDown.URL
	srvDown.Close()
	if result := CheckProvider(context.Background(), down); result.Passed {
		t.Fatal("expected closed server to fail")
	}
}

func TestRunAllChecksDirectories(t *testing.T) {
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	if err := os.MkdirAll(cfg.Paths.WorkDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 2 {
		t.Fatalf("expected output and state dirs to fail, got %+v", failed)
	}
}

func TestCheckSystemDepsMissingBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Video.FFmpegBinary = "clearly-not-ffmpeg"
	cfg.Video.FFprobeBinary = "clearly-not-ffprobe"
	cfg.Document.PdftoppmBinary = "clearly-not-pdftoppm"

	results := CheckSystemDeps(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected only binary checks when ffmpeg is missing, got %d", len(results))
	}
	for _, r := range results {
		if r.Available {
			t.Fatalf("expected %s unavailable", r.Name)
		}
	}
	if results[2].Optional {
		t.Fatal("pdftoppm is required without document providers")
	}
}
