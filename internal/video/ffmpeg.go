package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"wmclean/internal/media/ffprobe"
)

var commandContext = exec.CommandContext

const framePattern = "frame_%06d.png"

// EncodeRequest describes one re-encode of a cleaned frame sequence.
type EncodeRequest struct {
	FramesDir string
	FPS       float64
	// AudioPath is optional; the output is silent when empty.
	AudioPath string
	Output    string
	Codec     string
	CRF       int
}

// MediaTool is the set of media operations the pipeline needs.
type MediaTool interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
	ExtractAudio(ctx context.Context, input, output string) error
	// ExtractFrames writes PNG frames at fps into dir and returns them in order.
	ExtractFrames(ctx context.Context, input, dir string, fps float64) ([]string, error)
	Encode(ctx context.Context, req EncodeRequest) error
}

// FFmpeg implements MediaTool with the ffmpeg and ffprobe executables.
type FFmpeg struct {
	FFmpegBinary  string
	FFprobeBinary string
}

// NewFFmpeg returns an FFmpeg tool with default binary names filled in.
func NewFFmpeg(ffmpegBinary, ffprobeBinary string) *FFmpeg {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &FFmpeg{FFmpegBinary: ffmpegBinary, FFprobeBinary: ffprobeBinary}
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, f.FFprobeBinary, path)
}

func (f *FFmpeg) ExtractAudio(ctx context.Context, input, output string) error {
	return f.run(ctx, extractAudioArgs(input, output))
}

func (f *FFmpeg) ExtractFrames(ctx context.Context, input, dir string, fps float64) ([]string, error) {
	if err := f.run(ctx, extractFramesArgs(input, dir, fps)); err != nil {
		return nil, err
	}
	return listFrames(dir)
}

func (f *FFmpeg) Encode(ctx context.Context, req EncodeRequest) error {
	return f.run(ctx, encodeArgs(req))
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := commandContext(ctx, f.FFmpegBinary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", args[len(args)-1], err, lastLines(stderr.String(), 5))
	}
	return nil
}

func extractAudioArgs(input, output string) []string {
	return []string{"-y", "-v", "error", "-i", input, "-vn", "-map", "0:a:0", "-c:a", "copy", output}
}

func extractFramesArgs(input, dir string, fps float64) []string {
	return []string{
		"-y", "-v", "error", "-i", input,
		"-map", "0:v:0",
		"-vf", "fps=" + formatFPS(fps),
		"-fps_mode", "passthrough",
		filepath.Join(dir, framePattern),
	}
}

func encodeArgs(req EncodeRequest) []string {
	codec := req.Codec
	if codec == "" {
		codec = "libx264"
	}
	args := []string{
		"-y", "-v", "error",
		"-framerate", formatFPS(req.FPS),
		"-i", filepath.Join(req.FramesDir, framePattern),
	}
	if req.AudioPath != "" {
		args = append(args, "-i", req.AudioPath, "-map", "0:v:0", "-map", "1:a:0", "-c:a", "aac", "-b:a", "192k", "-shortest")
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", codec,
		"-pix_fmt", "yuv420p",
		"-crf", strconv.Itoa(req.CRF),
		"-r", formatFPS(req.FPS),
		req.Output,
	)
	return args
}

func formatFPS(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}

func listFrames(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
