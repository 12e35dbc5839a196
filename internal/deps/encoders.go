package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CheckFFmpegEncoder reports whether ffmpegBinary was built with encoder.
// The cleaned-frame encode needs the configured video codec; Drapto's AV1
// pass needs libsvtav1 from the ffmpeg on PATH.
func CheckFFmpegEncoder(ctx context.Context, ffmpegBinary, encoder string) Status {
	result := Status{
		Name:        "FFmpeg " + encoder,
		Command:     strings.TrimSpace(ffmpegBinary),
		Description: "Encoder used for cleaned video",
	}
	if result.Command == "" {
		result.Detail = "command not configured"
		return result
	}
	if _, err := exec.LookPath(result.Command); err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", result.Command)
		return result
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(checkCtx, result.Command, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	if !hasEncoder(string(out), encoder) {
		result.Detail = fmt.Sprintf("encoder %q not available", encoder)
		return result
	}
	result.Available = true
	return result
}

// hasEncoder scans `ffmpeg -encoders` output, whose rows look like
// " V....D libx264              libx264 H.264 ...".
func hasEncoder(listing, encoder string) bool {
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == encoder {
			return true
		}
	}
	return false
}
