package drapto

import (
	"log/slog"

	draptolib "github.com/five82/drapto"

	"wmclean/internal/logging"
)

// reporter forwards Drapto's structured events to a progress callback and
// the component logger.
type reporter struct {
	logger   *slog.Logger
	callback func(ProgressUpdate)
}

func newReporter(logger *slog.Logger, callback func(ProgressUpdate)) *reporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &reporter{logger: logger, callback: callback}
}

func (r *reporter) emit(update ProgressUpdate) {
	if r.callback != nil {
		r.callback(update)
	}
}

func (r *reporter) Hardware(s draptolib.HardwareSummary) {
	r.logger.Debug("drapto hardware", logging.Any("hostname", s.Hostname))
}

func (r *reporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Info("drapto encode starting",
		logging.Any("input", s.InputFile),
		logging.Any("output", s.OutputFile),
		logging.Any("resolution", s.Resolution),
	)
	r.emit(ProgressUpdate{Stage: "initialization"})
}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	r.emit(ProgressUpdate{Percent: float64(s.Percent), Stage: s.Stage, Message: s.Message})
}

func (r *reporter) CropResult(s draptolib.CropSummary) {
	r.logger.Debug("drapto crop", logging.Any("crop", s.Crop), logging.Any("required", s.Required))
}

func (r *reporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Debug("drapto encoding config",
		logging.Any("encoder", s.Encoder),
		logging.Any("preset", s.Preset),
		logging.Any("quality", s.Quality),
	)
}

func (r *reporter) EncodingStarted(totalFrames uint64) {
	r.logger.Debug("drapto encoding started", logging.Int64("total_frames", int64(totalFrames)))
	r.emit(ProgressUpdate{Stage: "encoding"})
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.emit(ProgressUpdate{Percent: float64(s.Percent), Stage: "encoding"})
}

func (r *reporter) ValidationComplete(s draptolib.ValidationSummary) {
	if !s.Passed {
		r.logger.Warn("drapto validation reported problems",
			logging.String(logging.FieldEventType, "encode_validation"),
			logging.String(logging.FieldErrorHint, "inspect the encoded file"),
			logging.String(logging.FieldImpact, "encoded video may differ from the cleaned intermediate"),
		)
	}
}

func (r *reporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.logger.Info("drapto encode complete",
		logging.Any("output", s.OutputPath),
		logging.Int64("original_bytes", int64(s.OriginalSize)),
		logging.Int64("encoded_bytes", int64(s.EncodedSize)),
	)
	r.emit(ProgressUpdate{Percent: 100, Stage: "complete"})
}

func (r *reporter) Warning(message string) {
	r.logger.Debug("drapto warning", logging.String("message", message))
	r.emit(ProgressUpdate{Warning: message})
}

func (r *reporter) Error(e draptolib.ReporterError) {
	r.logger.Debug("drapto error", logging.Any("title", e.Title), logging.Any("message", e.Message))
	r.emit(ProgressUpdate{Stage: "error", Message: e.Message})
}

func (r *reporter) OperationComplete(message string) {
	r.emit(ProgressUpdate{Stage: "complete", Message: message})
}

func (r *reporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *reporter) FileProgress(draptolib.FileProgressContext) {}

func (r *reporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*reporter)(nil)
