package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wmclean/internal/services"
	"wmclean/internal/testsupport"
)

type cliEnv struct {
	baseDir    string
	configPath string
	outputDir  string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Chdir(base)
	t.Setenv("HOME", filepath.Join(base, "home"))

	env := &cliEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "wmclean.toml"),
		outputDir:  filepath.Join(base, "output"),
	}
	body := fmt.Sprintf(`
[paths]
work_dir = %q
output_dir = %q
log_dir = %q
state_dir = %q
`, filepath.Join(base, "work"), env.outputDir, filepath.Join(base, "logs"), filepath.Join(base, "state"))
	if err := os.WriteFile(env.configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, name)
	if err := os.WriteFile(path, testsupport.PNG(t, testsupport.WatermarkedFrame(20, 20)), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestConfigInitWritesSample(t *testing.T) {
	env := setupCLIEnv(t)
	target := filepath.Join(env.baseDir, "conf", "new.toml")

	out, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestConfigShowMasksKeys(t *testing.T) {
	env := setupCLIEnv(t)
	extra := `
[[providers]]
name = "lama"
endpoint = "https://example.com/inpaint"
api_key = "super-secret"
`
	f, err := os.OpenFile(env.configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	_, _ = f.WriteString(extra)
	f.Close()

	out, err := env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "super-secret") || !strings.Contains(out, "lama") {
		t.Fatalf("unexpected config output:\n%s", out)
	}

	out, err = env.run(t, "providers")
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	if !strings.Contains(out, "lama") || !strings.Contains(out, "set") {
		t.Fatalf("unexpected providers output:\n%s", out)
	}
}

func TestCleanWritesOutput(t *testing.T) {
	env := setupCLIEnv(t)
	source := env.writeImage(t, "photo.png")

	out, err := env.run(t, "clean", source)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	want := filepath.Join(env.outputDir, "photo_cleaned.png")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected output %s: %v", want, err)
	}
	if !strings.Contains(out, "photo.png") || !strings.Contains(out, "Image") {
		t.Fatalf("unexpected summary:\n%s", out)
	}

	out, err = env.run(t, "clean", "--json", "--output-dir", filepath.Join(env.baseDir, "elsewhere"), source)
	if err != nil {
		t.Fatalf("clean --json: %v", err)
	}
	if !strings.Contains(out, `"Local": 1`) {
		t.Fatalf("unexpected json:\n%s", out)
	}
}

func TestCleanRejectsUnknownKind(t *testing.T) {
	env := setupCLIEnv(t)
	source := env.writeImage(t, "photo.png")
	if _, err := env.run(t, "clean", "--kind", "hologram", source); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestPreviewWritesOverlay(t *testing.T) {
	env := setupCLIEnv(t)
	source := env.writeImage(t, "photo.png")
	target := filepath.Join(env.baseDir, "mask.png")

	out, err := env.run(t, "preview", source, "--output", target)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out, "Gray / Medium") {
		t.Fatalf("unexpected preview output %q", out)
	}
	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		t.Fatalf("preview not written: %v", err)
	}
}

func TestQueueLifecycle(t *testing.T) {
	env := setupCLIEnv(t)
	source := env.writeImage(t, "scan.png")

	out, err := env.run(t, "queue", "add", "--tier", "light", source)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	if !strings.Contains(out, "Queued job 1") {
		t.Fatalf("unexpected add output %q", out)
	}

	out, err = env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "scan.png") || !strings.Contains(out, "Pending") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	out, err = env.run(t, "queue", "run")
	if err != nil {
		t.Fatalf("queue run: %v", err)
	}
	if !strings.Contains(out, "Processed 1 job(s)") {
		t.Fatalf("unexpected run output %q", out)
	}
	if _, err := os.Stat(filepath.Join(env.outputDir, "scan_cleaned.png")); err != nil {
		t.Fatalf("queue output missing: %v", err)
	}

	out, err = env.run(t, "queue", "show", "1")
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	if !strings.Contains(out, "Completed") || !strings.Contains(out, "Light") {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	if _, err := env.run(t, "queue", "show", "99"); err == nil {
		t.Fatal("expected missing job error")
	}

	out, err = env.run(t, "queue", "clear", "--status", "completed")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	if !strings.Contains(out, "Cleared 1 job(s)") {
		t.Fatalf("unexpected clear output %q", out)
	}
	out, err = env.run(t, "queue", "list")
	if err != nil || !strings.Contains(out, "Queue is empty") {
		t.Fatalf("expected empty queue, got %q %v", out, err)
	}
}

func TestQueueRejectsBadArguments(t *testing.T) {
	env := setupCLIEnv(t)
	cases := [][]string{
		{"queue", "add", filepath.Join(env.baseDir, "missing.png")},
		{"queue", "show", "abc"},
		{"queue", "list", "--status", "bogus"},
		{"queue", "clear", "--status", "processing"},
	}
	for _, args := range cases {
		if _, err := env.run(t, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestStatusReportsSections(t *testing.T) {
	env := setupCLIEnv(t)
	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, section := range []string{"Daemon", "Dependencies", "Directories", "Providers", "Queue"} {
		if !strings.Contains(out, "== "+section+" ==") {
			t.Fatalf("status missing %s section:\n%s", section, out)
		}
	}
	if !strings.Contains(out, "Not running") {
		t.Fatalf("expected daemon to be reported stopped:\n%s", out)
	}
}

func TestFormatHelpers(t *testing.T) {
	cases := []struct{ in, want string }{
		{"fatal_provider", "Fatal Provider"},
		{"completed", "Completed"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := formatLabel(tc.in); got != tc.want {
			t.Fatalf("formatLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	wrapped := services.Wrap(services.ErrDecode, "image", "decode", "could not decode image", errors.New("bad header"))
	msg := formatCLIError(wrapped)
	if !strings.HasPrefix(msg, "Error (Decode):") || !strings.Contains(msg, "Hint:") {
		t.Fatalf("unexpected error text %q", msg)
	}
	if got := formatCLIError(errors.New("boom")); got != "Error: boom" {
		t.Fatalf("unexpected plain error text %q", got)
	}
}
