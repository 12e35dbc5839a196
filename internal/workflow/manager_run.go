package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wmclean/internal/fileutil"
	"wmclean/internal/logging"
	"wmclean/internal/pipeline"
	"wmclean/internal/queue"
	"wmclean/internal/services"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.cleaner == nil {
		m.mu.Unlock()
		return errors.New("workflow cleaner not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := m.ProcessNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleNextItemError(ctx, err)
			continue
		}
		if item == nil {
			m.waitForItemOrShutdown(ctx)
		}
	}
}

// ProcessNext claims the oldest pending job and runs it to a terminal state.
// It returns nil when the queue has nothing pending. Job failures are
// recorded on the returned item; the error reports queue problems only.
func (m *Manager) ProcessNext(ctx context.Context) (*queue.Item, error) {
	if _, err := m.heartbeat.ReclaimStaleJobs(ctx); err != nil {
		logging.WarnWithContext(m.logger, "reclaim stale jobs failed; stuck jobs may remain",
			"heartbeat_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}

	item, err := m.store.ClaimNext(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	m.processJob(ctx, item)
	return item, nil
}

// RunPending processes jobs until the queue has nothing pending.
func (m *Manager) RunPending(ctx context.Context) (int, error) {
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		item, err := m.ProcessNext(ctx)
		if err != nil {
			return count, err
		}
		if item == nil {
			return count, nil
		}
		count++
	}
}

func (m *Manager) processJob(ctx context.Context, item *queue.Item) {
	ctx = services.WithJobID(ctx, item.ID)
	logger := logging.WithContext(ctx, m.logger)
	logger.Info("job started",
		logging.String("source", item.SourcePath),
		logging.String("correlation_id", item.CorrelationID),
	)

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	started := time.Now()
	result, err := m.cleanJob(ctx, item)

	hbCancel()
	hbWG.Wait()

	// Results produced while shutting down are still worth keeping.
	persistCtx := context.WithoutCancel(ctx)
	if err == nil {
		err = m.completeJob(persistCtx, item, result)
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			logger.Info("job interrupted by shutdown", logging.Error(err))
			m.setLastItem(item)
			return
		}
		m.handleJobFailure(persistCtx, item, err)
		return
	}

	logger.Info("job completed",
		logging.String("output", item.OutputPath),
		logging.Int("units", item.Units),
		logging.Int("remote_units", item.RemoteUnits),
		logging.Int("local_units", item.LocalUnits),
		logging.Int("skipped_units", item.SkippedUnits),
		logging.Int("passthrough_units", item.PassthroughUnits),
		logging.Bool("degraded", item.Degraded()),
		logging.Duration("elapsed", time.Since(started)),
	)
	m.metrics.Job(string(queue.StatusCompleted))
	m.setLastItem(item)
}

func (m *Manager) cleanJob(ctx context.Context, item *queue.Item) (*pipeline.Result, error) {
	data, err := os.ReadFile(item.SourcePath)
	if err != nil {
		marker := services.ErrDecode
		if errors.Is(err, os.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, "workflow", "read source", item.SourcePath, err)
	}

	var kind pipeline.Kind
	if item.Kind != "" {
		kind, err = pipeline.ParseKind(item.Kind)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "workflow", "parse kind", "invalid job kind", err)
		}
	}

	progress := newProgressReporter(ctx, m, item.ID)
	return m.cleaner.Clean(ctx, pipeline.Request{
		Data:      data,
		Name:      filepath.Base(item.SourcePath),
		Kind:      kind,
		ColorMode: item.ColorMode,
		Tier:      item.Tier,
		Progress:  progress.report,
	})
}

func (m *Manager) completeJob(ctx context.Context, item *queue.Item, result *pipeline.Result) error {
	target := filepath.Join(m.cfg.Paths.OutputDir, pipeline.OutputName(item.SourcePath, result.Extension))
	target = fileutil.UniquePath(target)
	if err := fileutil.WriteAtomic(target, result.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	rep := result.Report
	encoded, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	item.OutputPath = target
	item.Kind = string(result.Kind)
	item.Units = rep.Units
	item.RemoteUnits = rep.Remote
	item.LocalUnits = rep.Local
	item.SkippedUnits = rep.Skipped
	item.PassthroughUnits = rep.Passthrough
	item.Attempts = rep.Attempts
	item.ReportJSON = string(encoded)
	item.Status = queue.StatusCompleted
	item.ErrorMessage = ""
	item.LastHeartbeat = nil
	message := "Completed"
	if item.Degraded() {
		message = "Completed (degraded)"
	}
	item.SetProgress(message, 100)

	if err := m.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist job: %w", err)
	}
	return nil
}

func (m *Manager) handleNextItemError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	m.waitForItemOrShutdown(ctx)
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

// progressReporter persists unit progress, writing only when the whole
// percentage changes.
type progressReporter struct {
	ctx  context.Context
	m    *Manager
	id   int64
	mu   sync.Mutex
	last int
}

func newProgressReporter(ctx context.Context, m *Manager, id int64) *progressReporter {
	return &progressReporter{ctx: ctx, m: m, id: id, last: -1}
}

func (p *progressReporter) report(done, total int) {
	if total <= 0 {
		return
	}
	percent := done * 100 / total
	p.mu.Lock()
	if percent == p.last {
		p.mu.Unlock()
		return
	}
	p.last = percent
	p.mu.Unlock()

	message := fmt.Sprintf("Cleaned %d/%d units", done, total)
	if err := p.m.store.UpdateProgress(p.ctx, p.id, message, float64(percent)); err != nil {
		p.m.logger.Debug("progress update failed", logging.Error(err))
	}
}
