package drapto

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"wmclean/internal/logging"
)

// ProgressUpdate is a simplified Drapto progress event.
type ProgressUpdate struct {
	Percent float64
	Stage   string
	Message string
	Warning string
}

// Encoder re-encodes a finished video into outputDir and returns the path of
// the encoded file.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error)
}

// Library implements Encoder with the Drapto Go library.
type Library struct {
	logger *slog.Logger
}

// NewLibrary constructs a Library encoder.
func NewLibrary(logger *slog.Logger) *Library {
	return &Library{logger: logging.NewComponentLogger(logger, "drapto")}
}

// Encode runs an AV1 encode of inputPath. Drapto names its output after the
// input stem with an .mkv extension.
func (l *Library) Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return "", errors.New("output directory required")
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", err
	}
	rep := newReporter(l.logger, progress)
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		return "", err
	}
	return OutputPath(inputPath, outputDir), nil
}

// OutputPath returns where Drapto writes the encode of inputPath.
func OutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(outputDir, stem+".mkv")
}

var _ Encoder = (*Library)(nil)
