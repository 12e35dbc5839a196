package chunking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"

	"wmclean/internal/batch"
	"wmclean/internal/logging"
	"wmclean/internal/metrics"
	"wmclean/internal/services"
)

// PageCodec is the page-level view of a document format.
type PageCodec interface {
	PageCount(doc []byte) (int, error)
	// Extract returns a document holding pages [start, end), zero-based.
	Extract(doc []byte, start, end int) ([]byte, error)
	// Merge concatenates documents in order.
	Merge(parts [][]byte) ([]byte, error)
}

// Budget caps the size of a chunk handed to the processing function.
type Budget struct {
	MaxBytes int64
	// MaxPages caps pages per chunk; zero means no page cap.
	MaxPages int
}

// Task is one contiguous page range [Start, End) and its extracted bytes.
type Task struct {
	Start int
	End   int
	Data  []byte
}

// Pages returns the number of pages in the task.
func (t Task) Pages() int { return t.End - t.Start }

// Func processes one chunk and returns a document with the same page count.
// Returning an error marked services.ErrPayloadTooLarge makes the splitter
// bisect the chunk.
type Func func(ctx context.Context, task Task) ([]byte, error)

// Report summarizes one Process call.
type Report struct {
	Pages        int
	Chunks       int
	Calls        int
	Splits       int
	Retries      int
	Passthroughs int
	// PassedPages counts pages returned as they were in the input.
	PassedPages int
	MaxDepth    int
}

func (r *Report) add(other Report) {
	r.Calls += other.Calls
	r.Splits += other.Splits
	r.Retries += other.Retries
	r.Passthroughs += other.Passthroughs
	r.PassedPages += other.PassedPages
	r.MaxDepth = max(r.MaxDepth, other.MaxDepth)
}

// Splitter divides a document into page-range chunks under a byte budget,
// runs a function over each chunk, and bisects chunks the function reports
// as too large.
type Splitter struct {
	codec       PageCodec
	budget      Budget
	attempts    int
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Recorder
}

// Option customizes a Splitter.
type Option func(*Splitter)

// WithAttempts sets how often a chunk is tried for failures other than size.
func WithAttempts(n int) Option {
	return func(s *Splitter) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithConcurrency sets how many top-level chunks run at once.
func WithConcurrency(n int) Option {
	return func(s *Splitter) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Splitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Splitter) { s.metrics = rec }
}

// New constructs a splitter.
func New(codec PageCodec, budget Budget, opts ...Option) *Splitter {
	s := &Splitter{
		codec:       codec,
		budget:      budget,
		attempts:    2,
		concurrency: 1,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "chunking")
	return s
}

// PagesPerChunk derives the chunk size from the document's average page
// weight. The result is at least one page.
func (s *Splitter) PagesPerChunk(docBytes, pages int) int {
	if pages <= 0 {
		return 1
	}
	perPage := int64(docBytes) / int64(pages)
	if perPage < 1 {
		perPage = 1
	}
	n := pages
	if s.budget.MaxBytes > 0 {
		n = int(min(int64(pages), s.budget.MaxBytes/perPage))
	}
	if s.budget.MaxPages > 0 {
		n = min(n, s.budget.MaxPages)
	}
	return max(1, n)
}

// Plan returns the initial page ranges for a document.
func (s *Splitter) Plan(docBytes, pages int) []Task {
	per := s.PagesPerChunk(docBytes, pages)
	tasks := make([]Task, 0, (pages+per-1)/per)
	for start := 0; start < pages; start += per {
		tasks = append(tasks, Task{Start: start, End: min(start+per, pages)})
	}
	return tasks
}

// MaxDepth is the bisection bound for a document: ceil(log2(pages)).
func MaxDepth(pages int) int {
	if pages <= 1 {
		return 0
	}
	return bits.Len(uint(pages - 1))
}

type chunkResult struct {
	parts  [][]byte
	report Report
	err    error
}

// Process runs fn over every chunk of doc and reassembles the results in page
// order. Chunks that keep failing are returned unmodified, so the output
// always has the input's page count or Process returns an error marked
// services.ErrReassembly.
func (s *Splitter) Process(ctx context.Context, doc []byte, fn Func) ([]byte, Report, error) {
	var report Report
	pages, err := s.codec.PageCount(doc)
	if err != nil {
		return nil, report, services.Wrap(services.ErrDecode, "chunking", "page count", "could not read document", err)
	}
	if pages <= 0 {
		return nil, report, services.Wrap(services.ErrDecode, "chunking", "page count", "document has no pages", nil)
	}
	report.Pages = pages
	plan := s.Plan(len(doc), pages)
	report.Chunks = len(plan)
	depthLimit := MaxDepth(pages)
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("chunk plan",
		logging.Int("pages", pages),
		logging.Int("chunks", len(plan)),
		logging.Int("pages_per_chunk", plan[0].Pages()),
		logging.Int("document_bytes", len(doc)),
	)

	results := batch.Run(ctx, plan, batch.Options{Limit: s.concurrency}, func(ctx context.Context, _ int, task Task) chunkResult {
		var res chunkResult
		res.parts, res.err = s.processRange(ctx, doc, task.Start, task.End, 0, depthLimit, fn, &res.report)
		return res
	})

	parts := make([][]byte, 0, len(plan))
	for _, res := range results {
		if res.err != nil {
			return nil, report, res.err
		}
		report.add(res.report)
		parts = append(parts, res.parts...)
	}

	merged, err := s.merge(parts)
	if err != nil {
		return nil, report, services.Wrap(services.ErrReassembly, "chunking", "merge", "could not concatenate chunks", err)
	}
	got, err := s.codec.PageCount(merged)
	if err != nil {
		return nil, report, services.Wrap(services.ErrReassembly, "chunking", "verify", "could not read merged document", err)
	}
	if got != pages {
		return nil, report, services.Wrap(services.ErrReassembly, "chunking", "verify",
			fmt.Sprintf("merged document has %d pages, expected %d", got, pages), nil)
	}
	return merged, report, nil
}

func (s *Splitter) merge(parts [][]byte) ([]byte, error) {
	if len(parts) == 1 {
		return parts[0], nil
	}
	return s.codec.Merge(parts)
}

func (s *Splitter) processRange(ctx context.Context, doc []byte, start, end, depth, depthLimit int, fn Func, report *Report) ([][]byte, error) {
	report.MaxDepth = max(report.MaxDepth, depth)
	data, err := s.codec.Extract(doc, start, end)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "chunking", "extract",
			fmt.Sprintf("could not extract pages %d-%d", start+1, end), err)
	}
	task := Task{Start: start, End: end, Data: data}
	logger := logging.WithContext(ctx, s.logger).With(
		logging.Int("chunk_start", start),
		logging.Int("chunk_end", end),
		logging.Int("depth", depth),
	)

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			report.Retries++
		}
		report.Calls++
		out, err := fn(ctx, task)
		if err == nil {
			err = s.checkPages(out, task.Pages())
			if err == nil {
				return [][]byte{out}, nil
			}
		}
		lastErr = err

		if errors.Is(err, services.ErrPayloadTooLarge) {
			n := end - start
			if n <= 1 || depth >= depthLimit {
				logger.Info("chunk still too large at minimum size; passing through", logging.Error(err))
				return s.passthrough(data, task, report), nil
			}
			mid := start + n/2
			report.Splits++
			s.metrics.ChunkSplit()
			logger.Debug("chunk too large; splitting", logging.Int("mid", mid))
			left, err := s.processRange(ctx, doc, start, mid, depth+1, depthLimit, fn, report)
			if err != nil {
				return nil, err
			}
			right, err := s.processRange(ctx, doc, mid, end, depth+1, depthLimit, fn, report)
			if err != nil {
				return nil, err
			}
			return append(left, right...), nil
		}
		if ctx.Err() != nil {
			break
		}
		logger.Debug("chunk attempt failed", logging.Int("attempt", attempt), logging.Error(err))
	}

	logging.WarnWithContext(logger, "chunk failed; passing original pages through", "chunk_passthrough",
		logging.Int("attempts", s.attempts),
		logging.Error(lastErr),
	)
	return s.passthrough(data, task, report), nil
}

func (s *Splitter) passthrough(data []byte, task Task, report *Report) [][]byte {
	report.Passthroughs++
	report.PassedPages += task.Pages()
	s.metrics.Passthrough("chunk")
	return [][]byte{data}
}

func (s *Splitter) checkPages(out []byte, want int) error {
	got, err := s.codec.PageCount(out)
	if err != nil {
		return services.Wrap(services.ErrReassembly, "chunking", "verify chunk", "unreadable chunk result", err)
	}
	if got != want {
		return services.Wrap(services.ErrReassembly, "chunking", "verify chunk",
			fmt.Sprintf("chunk result has %d pages, expected %d", got, want), nil)
	}
	return nil
}
