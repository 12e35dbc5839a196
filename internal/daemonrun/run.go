package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"wmclean/internal/config"
	"wmclean/internal/daemon"
	"wmclean/internal/logging"
	"wmclean/internal/metrics"
	"wmclean/internal/pipeline"
	"wmclean/internal/preflight"
	"wmclean/internal/queue"
	"wmclean/internal/workflow"
)

// PIDFileName is written into the state directory while the daemon runs.
const PIDFileName = "wmclean.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
}

// Run starts the wmclean daemon and blocks until SIGINT, SIGTERM, or
// cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	if opts.LogLevel != "" {
		logCfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(&logCfg, true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, PIDFileName)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	rec := metrics.New()
	cleaner, err := pipeline.New(cfg, pipeline.Dependencies{Logger: logger, Metrics: rec})
	if err != nil {
		store.Close()
		return fmt.Errorf("build pipeline: %w", err)
	}

	manager := workflow.NewManager(cfg, store, cleaner, logger, workflow.WithMetrics(rec))
	d, err := daemon.New(cfg, store, logger, manager, rec)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running daemon and the queue database"),
			logging.String(logging.FieldImpact, "queued jobs will not be processed"),
		)
		return err
	}
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("write pid file failed", logging.Error(err))
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("wmclean daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Int("image_providers", len(cfg.EnabledProviders("image"))),
		logging.Int("document_providers", len(cfg.EnabledProviders("document"))),
	}
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		attrs = append(attrs, logging.Bool(status.Command+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
