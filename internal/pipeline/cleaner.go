package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"wmclean/internal/batch"
	"wmclean/internal/chunking"
	"wmclean/internal/config"
	"wmclean/internal/detect"
	"wmclean/internal/document"
	"wmclean/internal/inpaint"
	"wmclean/internal/logging"
	"wmclean/internal/metrics"
	"wmclean/internal/orchestrator"
	"wmclean/internal/raster"
	"wmclean/internal/services"
	"wmclean/internal/services/drapto"
	"wmclean/internal/services/remote"
	"wmclean/internal/video"
)

// Rasterizer renders a PDF into page frames.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]*raster.Frame, error)
}

// Dependencies are the collaborators a Cleaner needs. Nil fields are built
// from the configuration.
type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	Rasterizer   Rasterizer
	Codec        chunking.PageCodec
	Media        video.MediaTool
	FinalEncoder drapto.Encoder
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
}

// Request is one input to clean.
type Request struct {
	Data []byte
	// Name is the original file name; its extension helps kind detection
	// and decides the output extension.
	Name string
	// Kind, ColorMode and Tier override detection and configured defaults
	// when set.
	Kind        Kind
	ColorMode   string
	Tier        string
	TargetColor string
	// DilateRadius overrides classifier.dilate_radius when non-nil.
	DilateRadius *int
	// Progress reports finished units.
	Progress func(done, total int)
}

// Result is a cleaned output.
type Result struct {
	Data      []byte
	Kind      Kind
	Extension string
	Report    Report
}

// Cleaner dispatches inputs by media kind and runs the per-unit pipeline:
// classify, dilate, then repair through the orchestrator.
type Cleaner struct {
	cfg        *config.Config
	orch       *orchestrator.Orchestrator
	rasterizer Rasterizer
	codec      chunking.PageCodec
	media      video.MediaTool
	final      drapto.Encoder
	logger     *slog.Logger
	metrics    *metrics.Recorder
}

// New builds a Cleaner, constructing whatever deps leaves unset.
func New(cfg *config.Config, deps Dependencies) (*Cleaner, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Cleaner{
		cfg:        cfg,
		orch:       deps.Orchestrator,
		rasterizer: deps.Rasterizer,
		codec:      deps.Codec,
		media:      deps.Media,
		final:      deps.FinalEncoder,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		metrics:    deps.Metrics,
	}
	if c.orch == nil {
		orch, err := BuildOrchestrator(cfg, logger, deps.Metrics, deps.HTTPClient)
		if err != nil {
			return nil, err
		}
		c.orch = orch
	}
	if c.rasterizer == nil {
		c.rasterizer = document.NewRasterizer(cfg.Document.PdftoppmBinary, cfg.Document.Scale, cfg.Paths.WorkDir)
	}
	if c.codec == nil {
		c.codec = document.NewPDFCodec()
	}
	if c.media == nil {
		c.media = video.NewFFmpeg(cfg.Video.FFmpegBinary, cfg.Video.FFprobeBinary)
	}
	if c.final == nil && cfg.Video.FinalEncoder == "drapto" {
		c.final = drapto.NewLibrary(logger)
	}
	return c, nil
}

// BuildOrchestrator constructs providers from the [[providers]] blocks.
func BuildOrchestrator(cfg *config.Config, logger *slog.Logger, rec *metrics.Recorder, hc *http.Client) (*orchestrator.Orchestrator, error) {
	opts := []remote.Option{remote.WithLogger(logger)}
	if hc != nil {
		opts = append(opts, remote.WithHTTPClient(hc))
	}
	images, err := remote.NewAll(cfg.EnabledProviders("image"), opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "providers", "invalid image provider", err)
	}
	documents, err := remote.NewAll(cfg.EnabledProviders("document"), opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "providers", "invalid document provider", err)
	}
	return orchestrator.New(images, orchestrator.PolicyFromConfig(cfg.Retry),
		orchestrator.WithDocumentProviders(documents),
		orchestrator.WithFillOptions(inpaint.Options{Radius: cfg.Inpaint.WindowRadius, MaxPasses: cfg.Inpaint.MaxPasses}),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(rec),
	), nil
}

// unitSettings is the classifier state shared by every unit of a request.
type unitSettings struct {
	classifier *detect.Classifier
	radius     int
	kind       Kind
}

// Clean runs one request to completion. Provider failures never fail the
// request; decode, validation and reassembly problems do.
func (c *Cleaner) Clean(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	if deadline := c.cfg.Deadline(); deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}
	logger := logging.WithContext(ctx, c.logger)

	if len(req.Data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "clean", "input is empty", nil)
	}
	kind := req.Kind
	if kind == "" {
		detected, err := DetectKind(req.Data, req.Name)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "pipeline", "detect kind", "unsupported input", err)
		}
		kind = detected
	}
	settings, err := c.settings(req, kind)
	if err != nil {
		return nil, err
	}

	logger.Info("clean started",
		logging.String("kind", string(kind)),
		logging.String("mode", string(settings.classifier.Mode())),
		logging.Int("input_bytes", len(req.Data)),
	)

	t := newTally()
	var (
		data []byte
		ext  string
	)
	switch kind {
	case KindImage:
		data, ext, err = c.cleanImage(services.WithStage(ctx, "image"), req, settings, t)
	case KindDocument:
		data, ext, err = c.cleanDocument(services.WithStage(ctx, "document"), req, settings, t)
	case KindVideo:
		data, ext, err = c.cleanVideo(services.WithStage(ctx, "video"), req, settings, t)
	default:
		err = services.Wrap(services.ErrValidation, "pipeline", "clean", "unknown media kind "+string(kind), nil)
	}
	if err != nil {
		logger.Error("clean failed", logging.Error(err))
		return nil, err
	}

	report := t.snapshot()
	report.RequestID = requestID
	report.Kind = kind
	report.Mode = settings.classifier.Mode()
	report.Tier = tierOf(req, c.cfg)
	report.Elapsed = time.Since(started)

	attrs := []logging.Attr{
		logging.Int("units", report.Units),
		logging.Int("remote", report.Remote),
		logging.Int("local", report.Local),
		logging.Int("skipped", report.Skipped),
		logging.Int("passthrough", report.Passthrough),
		logging.Int("output_bytes", len(data)),
		logging.Duration("elapsed", report.Elapsed),
	}
	if report.Degraded() {
		logging.WarnWithContext(logger, "clean finished with degraded units", "clean_degraded", attrs...)
	} else {
		logger.Info("clean finished", logging.Args(attrs...)...)
	}
	return &Result{Data: data, Kind: kind, Extension: ext, Report: report}, nil
}

func tierOf(req Request, cfg *config.Config) detect.Tier {
	value := req.Tier
	if value == "" {
		value = cfg.Classifier.Tier
	}
	tier, err := detect.ParseTier(value)
	if err != nil {
		return detect.TierMedium
	}
	return tier
}

func (c *Cleaner) settings(req Request, kind Kind) (unitSettings, error) {
	modeValue := req.ColorMode
	if modeValue == "" {
		modeValue = c.cfg.Classifier.ColorMode
	}
	mode, err := detect.ParseColorMode(modeValue)
	if err != nil {
		return unitSettings{}, services.Wrap(services.ErrValidation, "pipeline", "classifier", "invalid color mode", err)
	}
	tierValue := req.Tier
	if tierValue == "" {
		tierValue = c.cfg.Classifier.Tier
	}
	tier, err := detect.ParseTier(tierValue)
	if err != nil {
		return unitSettings{}, services.Wrap(services.ErrValidation, "pipeline", "classifier", "invalid tier", err)
	}
	target := req.TargetColor
	if target == "" {
		target = c.cfg.Classifier.TargetColor
	}
	classifier, err := detect.NewClassifier(mode, thresholdsFor(c.cfg.Classifier, tier), target)
	if err != nil {
		return unitSettings{}, services.Wrap(services.ErrValidation, "pipeline", "classifier", "invalid classifier settings", err)
	}
	radius := c.cfg.Classifier.DilateRadius
	if req.DilateRadius != nil {
		radius = max(0, *req.DilateRadius)
	}
	return unitSettings{classifier: classifier, radius: radius, kind: kind}, nil
}

// unit runs the per-unit pipeline on one frame. It never fails: when no
// provider repairs the frame it is filled locally.
func (c *Cleaner) unit(ctx context.Context, s unitSettings, frame *raster.Frame, t *tally) *raster.Frame {
	mask := s.classifier.Classify(frame)
	if s.radius > 0 {
		mask = detect.Dilate(mask, s.radius)
	}
	logging.WithContext(ctx, c.logger).Debug("unit classified", logging.Mask(mask.Count(), mask.Coverage()))
	out, rep := c.orch.Process(ctx, frame, mask)
	t.record(rep)
	c.metrics.Unit(string(s.kind), string(rep.Source))
	return out
}

// structural returns a context for rasterizing, reassembly and ffmpeg work:
// detached from the caller's cancellation, bounded by the assembly timeout.
func (c *Cleaner) structural(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.cfg.AssemblyTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (c *Cleaner) cleanImage(ctx context.Context, req Request, s unitSettings, t *tally) ([]byte, string, error) {
	frame, format, err := raster.Decode(req.Data)
	if err != nil {
		return nil, "", services.Wrap(services.ErrDecode, "image", "decode", "could not decode image", err)
	}
	out := c.unit(services.WithUnitIndex(ctx, 0), s, frame, t)
	if req.Progress != nil {
		req.Progress(1, 1)
	}
	data, written, err := raster.Encode(out, format)
	if err != nil {
		return nil, "", services.Wrap(services.ErrReassembly, "image", "encode", "could not encode cleaned image", err)
	}
	return data, imageExtension(req.Name, format, written), nil
}

// imageExtension keeps the input's extension when the output format matches
// it, and otherwise names the format actually written.
func imageExtension(name, inputFormat, written string) string {
	if written == inputFormat {
		if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
			return ext
		}
	}
	switch written {
	case "jpeg":
		return ".jpg"
	case "":
		return ".png"
	default:
		return "." + written
	}
}

func (c *Cleaner) cleanDocument(ctx context.Context, req Request, s unitSettings, t *tally) ([]byte, string, error) {
	splitter := chunking.New(c.codec,
		chunking.Budget{MaxBytes: c.cfg.Chunking.MaxBytes, MaxPages: c.cfg.Chunking.MaxPages},
		chunking.WithAttempts(c.cfg.Chunking.Attempts),
		chunking.WithConcurrency(c.cfg.Batch.ChunkConcurrency),
		chunking.WithLogger(c.logger),
		chunking.WithMetrics(c.metrics),
	)

	var progress func(pages int)
	if req.Progress != nil {
		total, err := c.codec.PageCount(req.Data)
		if err == nil && total > 0 {
			var done atomic.Int64
			progress = func(pages int) {
				n := min(int(done.Add(int64(pages))), total)
				req.Progress(n, total)
			}
		}
	}

	out, rep, err := splitter.Process(ctx, req.Data, func(ctx context.Context, task chunking.Task) ([]byte, error) {
		sub := newTally()
		data, err := c.cleanChunk(ctx, task, s, sub)
		if err != nil {
			t.mergeAttempts(sub.snapshot())
			return nil, err
		}
		t.merge(sub.snapshot())
		if progress != nil {
			progress(task.Pages())
		}
		return data, nil
	})
	if err != nil {
		return nil, "", err
	}
	t.passthrough(rep.PassedPages)
	t.setChunks(rep)
	return out, ".pdf", nil
}

// cleanChunk repairs one page range. Document providers see the PDF as-is;
// without them, or when they all fail, pages are rasterized and cleaned as
// independent units.
func (c *Cleaner) cleanChunk(ctx context.Context, task chunking.Task, s unitSettings, sub *tally) ([]byte, error) {
	logger := logging.WithContext(ctx, c.logger)
	if c.orch.HasDocumentProviders() {
		out, rep, err := c.orch.ProcessDocument(ctx, task.Data)
		switch {
		case err == nil:
			pages, perr := c.codec.PageCount(out)
			if perr == nil && pages == task.Pages() {
				sub.remoteDocument(rep, pages)
				return out, nil
			}
			sub.noteAttempts(rep)
			logger.Info("document provider returned unusable pages; rasterizing",
				logging.Int("want_pages", task.Pages()),
				logging.Int("got_pages", pages),
				logging.Error(perr),
			)
		case orchestrator.IsTooLarge(err):
			sub.noteAttempts(rep)
			return nil, err
		default:
			sub.noteAttempts(rep)
			logger.Info("document providers failed; rasterizing", logging.Error(err))
		}
	}

	structural, cancel := c.structural(ctx)
	defer cancel()
	frames, err := c.rasterizer.Rasterize(structural, task.Data)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "document", "rasterize", "could not render pages", err)
	}
	cleaned := batch.Run(ctx, frames, batch.Options{Limit: c.cfg.Batch.Concurrency},
		func(ctx context.Context, index int, frame *raster.Frame) *raster.Frame {
			return c.unit(services.WithUnitIndex(ctx, task.Start+index), s, frame, sub)
		})
	out, err := document.Reassemble(cleaned, c.cfg.Document.Scale)
	if err != nil {
		return nil, services.Wrap(services.ErrReassembly, "document", "reassemble", "could not rebuild pages", err)
	}
	return out, nil
}

func (c *Cleaner) cleanVideo(ctx context.Context, req Request, s unitSettings, t *tally) ([]byte, string, error) {
	p := video.NewPipeline(c.media, video.Options{
		FPSCap:          c.cfg.Video.FPSCap,
		Concurrency:     c.cfg.Batch.Concurrency,
		WorkDir:         c.cfg.Paths.WorkDir,
		Codec:           c.cfg.Video.Codec,
		CRF:             c.cfg.Video.CRF,
		AssemblyTimeout: c.cfg.AssemblyTimeout(),
		FinalEncoder:    c.final,
		Logger:          c.logger,
		Metrics:         c.metrics,
		OnFrame:         req.Progress,
	})
	ext := strings.ToLower(filepath.Ext(req.Name))
	out, rep, err := p.Process(ctx, req.Data, ext, func(ctx context.Context, _ int, frame *raster.Frame) (*raster.Frame, error) {
		return c.unit(ctx, s, frame, t), nil
	})
	if err != nil {
		return nil, "", err
	}
	t.passthrough(rep.Kept)
	t.setVideo(rep)
	return out, rep.Extension, nil
}
