package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wmclean/internal/batch"
	"wmclean/internal/logging"
	"wmclean/internal/metrics"
	"wmclean/internal/raster"
	"wmclean/internal/services"
	"wmclean/internal/services/drapto"
)

// FrameFunc cleans one frame. An error keeps the original frame.
type FrameFunc func(ctx context.Context, index int, frame *raster.Frame) (*raster.Frame, error)

// Options configures a Pipeline.
type Options struct {
	FPSCap      float64
	Concurrency int
	WorkDir     string
	Codec       string
	CRF         int
	// AssemblyTimeout bounds probing, extraction and encoding. These steps
	// are detached from the caller's cancellation so a cleaned frame set is
	// always turned back into a video.
	AssemblyTimeout time.Duration
	// FinalEncoder, when set, re-encodes the result (Drapto AV1).
	FinalEncoder drapto.Encoder
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
	// OnFrame reports frame progress.
	OnFrame func(done, total int)
}

// Report summarizes one video.
type Report struct {
	Frames    int
	Cleaned   int
	Kept      int
	FPS       float64
	SourceFPS float64
	Audio     bool
	// Extension is the container of the returned bytes (".mp4" or ".mkv").
	Extension    string
	FinalEncoded bool
}

// Pipeline probes a video, cleans its frames and re-encodes them.
type Pipeline struct {
	tool MediaTool
	opts Options
}

// NewPipeline constructs a pipeline.
func NewPipeline(tool MediaTool, opts Options) *Pipeline {
	if opts.FPSCap <= 0 {
		opts.FPSCap = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.AssemblyTimeout <= 0 {
		opts.AssemblyTimeout = 30 * time.Minute
	}
	if opts.Codec == "" {
		opts.Codec = "libx264"
	}
	opts.Logger = logging.NewComponentLogger(opts.Logger, "video")
	return &Pipeline{tool: tool, opts: opts}
}

// ExtractionFPS is the frame rate frames are sampled at: the source rate,
// capped.
func (p *Pipeline) ExtractionFPS(source float64) float64 {
	if source <= 0 {
		return p.opts.FPSCap
	}
	return min(source, p.opts.FPSCap)
}

// Process cleans data, a complete video file whose container is named by ext.
func (p *Pipeline) Process(ctx context.Context, data []byte, ext string, fn FrameFunc) ([]byte, Report, error) {
	var report Report
	logger := logging.WithContext(ctx, p.opts.Logger)

	structural, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.AssemblyTimeout)
	defer cancel()

	dir, err := os.MkdirTemp(p.opts.WorkDir, "video-")
	if err != nil {
		return nil, report, services.Wrap(services.ErrConfiguration, "video", "work dir", "could not create work directory", err)
	}
	defer os.RemoveAll(dir)

	if ext == "" || !strings.HasPrefix(ext, ".") {
		ext = ".mp4"
	}
	input := filepath.Join(dir, "input"+ext)
	if err := writeFile(input, data); err != nil {
		return nil, report, services.Wrap(services.ErrConfiguration, "video", "stage input", "could not write input", err)
	}

	probe, err := p.tool.Probe(structural, input)
	if err != nil {
		return nil, report, services.Wrap(services.ErrDecode, "video", "probe", "could not read video", err)
	}
	stream, ok := probe.VideoStream()
	if !ok {
		return nil, report, services.Wrap(services.ErrDecode, "video", "probe", "input has no video stream", nil)
	}
	report.SourceFPS = stream.FrameRate()
	report.FPS = p.ExtractionFPS(report.SourceFPS)

	var audioPath string
	if probe.HasAudio() {
		audioPath = filepath.Join(dir, "audio.mka")
		if err := p.tool.ExtractAudio(structural, input, audioPath); err != nil {
			logging.WarnWithContext(logger, "audio extraction failed; output will be silent", "audio_dropped",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that ffmpeg can read the audio codec"),
				logging.String(logging.FieldImpact, "cleaned video has no audio track"),
			)
			audioPath = ""
		}
	}
	report.Audio = audioPath != ""

	framesDir := filepath.Join(dir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, report, services.Wrap(services.ErrConfiguration, "video", "work dir", "could not create frames directory", err)
	}
	frames, err := p.tool.ExtractFrames(structural, input, framesDir, report.FPS)
	if err != nil {
		return nil, report, services.Wrap(services.ErrExternalTool, "video", "extract frames", "ffmpeg could not extract frames", err)
	}
	if len(frames) == 0 {
		return nil, report, services.Wrap(services.ErrDecode, "video", "extract frames", "video produced no frames", nil)
	}
	report.Frames = len(frames)
	logger.Info("video frames extracted",
		logging.Int("frames", len(frames)),
		logging.Float64("fps", report.FPS),
		logging.Float64("source_fps", report.SourceFPS),
		logging.Bool("audio", report.Audio),
	)

	cleaned := batch.Run(ctx, frames, batch.Options{Limit: p.opts.Concurrency, OnDone: p.opts.OnFrame},
		func(ctx context.Context, index int, path string) bool {
			return p.cleanFrame(services.WithUnitIndex(ctx, index), index, path, fn)
		})
	for _, ok := range cleaned {
		if ok {
			report.Cleaned++
		} else {
			report.Kept++
		}
	}

	output := filepath.Join(dir, "cleaned.mp4")
	if err := p.tool.Encode(structural, EncodeRequest{
		FramesDir: framesDir,
		FPS:       report.FPS,
		AudioPath: audioPath,
		Output:    output,
		Codec:     p.opts.Codec,
		CRF:       p.opts.CRF,
	}); err != nil {
		return nil, report, services.Wrap(services.ErrReassembly, "video", "encode", "ffmpeg could not encode cleaned frames", err)
	}
	report.Extension = ".mp4"

	if p.opts.FinalEncoder != nil {
		finalDir := filepath.Join(dir, "final")
		if err := os.MkdirAll(finalDir, 0o755); err == nil {
			encoded, err := p.opts.FinalEncoder.Encode(structural, output, finalDir, nil)
			if err != nil {
				logging.WarnWithContext(logger, "final encode failed; returning intermediate encode", "final_encode_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check drapto and ffmpeg installation"),
				)
			} else {
				output = encoded
				report.Extension = filepath.Ext(encoded)
				report.FinalEncoded = true
			}
		}
	}

	result, err := os.ReadFile(output)
	if err != nil {
		return nil, report, services.Wrap(services.ErrReassembly, "video", "read output", "encoded video missing", err)
	}
	return result, report, nil
}

// cleanFrame rewrites the frame file in place when fn succeeds. Any failure
// leaves the extracted frame untouched.
func (p *Pipeline) cleanFrame(ctx context.Context, index int, path string, fn FrameFunc) bool {
	logger := logging.WithContext(ctx, p.opts.Logger)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Info("frame unreadable; keeping original", logging.Error(err))
		p.opts.Metrics.Passthrough("frame")
		return false
	}
	frame, _, err := raster.Decode(data)
	if err != nil {
		logger.Info("frame undecodable; keeping original", logging.Error(err))
		p.opts.Metrics.Passthrough("frame")
		return false
	}
	out, err := fn(ctx, index, frame)
	if err != nil || out == nil {
		logger.Info("frame cleaning failed; keeping original", logging.Error(err))
		p.opts.Metrics.Passthrough("frame")
		return false
	}
	encoded, err := raster.EncodePNG(out)
	if err != nil {
		logger.Info("frame encode failed; keeping original", logging.Error(err))
		p.opts.Metrics.Passthrough("frame")
		return false
	}
	if err := writeFile(path, encoded); err != nil {
		logger.Info("frame write failed; keeping original", logging.Error(err))
		p.opts.Metrics.Passthrough("frame")
		return false
	}
	return true
}

func (r Report) String() string {
	return fmt.Sprintf("%d frames at %g fps (%d cleaned, %d kept)", r.Frames, r.FPS, r.Cleaned, r.Kept)
}
