package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"wmclean/internal/config"
	"wmclean/internal/deps"
)

// CheckProvider verifies that a provider is configured with a key and that
// its endpoint answers HTTP. Any response counts as reachable; inpainting
// endpoints commonly reject GET.
func CheckProvider(ctx context.Context, p config.Provider) Result {
	name := "Provider " + p.Name
	if p.Disabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if strings.TrimSpace(p.APIKey) == "" {
		detail := "API key missing"
		if p.APIKeyEnv != "" {
			detail = fmt.Sprintf("API key missing (%s is unset)", p.APIKeyEnv)
		}
		return Result{Name: name, Detail: detail}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, p.Endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid endpoint (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%d, %s)", p.Kind, resp.StatusCode, p.Accepts)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the configured pipeline
// needs. Both the daemon and the CLI status command use it.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Video.FFmpegBinary,
			Description: "Required for video frame extraction and encoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Video.FFprobeBinary,
			Description: "Required for video inspection",
		},
		{
			Name:        "pdftoppm",
			Command:     cfg.Document.PdftoppmBinary,
			Description: "Required to rasterize PDF pages",
			Optional:    len(cfg.EnabledProviders("document")) > 0,
		},
	}
	results := deps.CheckBinaries(requirements)
	if results[0].Available {
		results = append(results, deps.CheckFFmpegEncoder(ctx, cfg.Video.FFmpegBinary, cfg.Video.Codec))
	}
	if cfg.Video.FinalEncoder == "drapto" {
		status := deps.CheckFFmpegEncoder(ctx, "ffmpeg", "libsvtav1")
		status.Description = "Required by the Drapto AV1 final encode"
		results = append(results, status)
	}
	return results
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "unreachable (timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "unreachable (timed out)"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
