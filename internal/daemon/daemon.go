package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"wmclean/internal/config"
	"wmclean/internal/detect"
	"wmclean/internal/logging"
	"wmclean/internal/metrics"
	"wmclean/internal/pipeline"
	"wmclean/internal/preflight"
	"wmclean/internal/queue"
	"wmclean/internal/workflow"
)

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	metrics  *metrics.Recorder

	lockPath string
	lock     *flock.Flock

	mu          sync.Mutex
	server      *http.Server
	metricsAddr string

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                   `json:"running"`
	Workflow     workflow.StatusSummary `json:"workflow"`
	QueueDBPath  string                 `json:"queue_db_path"`
	LockFilePath string                 `json:"lock_file_path"`
	MetricsAddr  string                 `json:"metrics_addr"`
}

// New constructs a daemon with initialized dependencies. rec may be nil, in
// which case no metrics endpoint is served.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, rec *metrics.Recorder) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		metrics:  rec,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers orphaned jobs, starts the metrics
// endpoint, and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another wmclean daemon instance is already running")
	}

	if failed := preflight.Failed(preflight.RunAll(ctx, d.cfg)); len(failed) > 0 {
		_ = d.lock.Unlock()
		details := make([]string, 0, len(failed))
		for _, r := range failed {
			details = append(details, r.Name+": "+r.Detail)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}

	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		d.logger.Warn("failed to reset stuck jobs",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reset_stuck_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	} else if reset > 0 {
		d.logger.Info("returned interrupted jobs to pending", logging.Int64("count", reset))
	}

	if err := d.startMetrics(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.stopMetrics()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("wmclean daemon started",
		logging.String("lock", d.lockPath),
		logging.String("queue_db", d.store.Path()),
		logging.String("metrics", d.MetricsAddr()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. Jobs still
// processing are failed with queue.DaemonStopReason.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if n, err := d.store.FailProcessing(ctx, queue.DaemonStopReason); err != nil {
		d.logger.Warn("failed to mark in-flight jobs", logging.Error(err))
	} else if n > 0 {
		d.logger.Info("marked in-flight jobs failed", logging.Int64("count", n))
	}

	d.stopMetrics()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("wmclean daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) startMetrics() error {
	bind := strings.TrimSpace(d.cfg.Daemon.MetricsBind)
	if d.metrics == nil || bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", bind, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/status", d.serveStatus)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	d.mu.Lock()
	d.server = server
	d.metricsAddr = listener.Addr().String()
	d.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("metrics server stopped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "metrics_server_failed"),
			)
		}
	}()
	return nil
}

func (d *Daemon) stopMetrics() {
	d.mu.Lock()
	server := d.server
	d.server = nil
	d.metricsAddr = ""
	d.mu.Unlock()
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		d.logger.Warn("metrics server shutdown failed", logging.Error(err))
	}
}

func (d *Daemon) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d.Status(r.Context())); err != nil {
		d.logger.Debug("status response not written", logging.Error(err))
	}
}

// MetricsAddr is the address the metrics endpoint listens on, or "" when
// it is not serving.
func (d *Daemon) MetricsAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metricsAddr
}

// EnqueueFile validates req and stores it as a pending job. Kind, ColorMode
// and Tier are optional per-job overrides.
func EnqueueFile(ctx context.Context, store *queue.Store, req queue.JobRequest) (*queue.Item, error) {
	trimmed := strings.TrimSpace(req.SourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	if _, err := pipeline.ParseKind(req.Kind); err != nil {
		return nil, err
	}
	if req.ColorMode != "" {
		if _, err := detect.ParseColorMode(req.ColorMode); err != nil {
			return nil, err
		}
	}
	if req.Tier != "" {
		if _, err := detect.ParseTier(req.Tier); err != nil {
			return nil, err
		}
	}
	req.SourcePath = absPath
	item, err := store.NewJob(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("enqueue file: %w", err)
	}
	return item, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		MetricsAddr:  d.MetricsAddr(),
	}
}
