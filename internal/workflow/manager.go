package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wmclean/internal/config"
	"wmclean/internal/logging"
	"wmclean/internal/metrics"
	"wmclean/internal/pipeline"
	"wmclean/internal/queue"
)

const (
	defaultHeartbeatInterval = 15 * time.Second
	defaultHeartbeatTimeout  = 2 * time.Minute
)

// Cleaner runs one input through the pipeline.
type Cleaner interface {
	Clean(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Manager coordinates queue processing.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	cleaner      Cleaner
	logger       *slog.Logger
	metrics      *metrics.Recorder
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastItem  *queue.Item
	processed int
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	metrics           *metrics.Recorder
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// WithMetrics records job outcomes on rec.
func WithMetrics(rec *metrics.Recorder) ManagerOption {
	return func(o *managerOptions) { o.metrics = rec }
}

// WithPollInterval overrides daemon.poll_interval_seconds.
func WithPollInterval(interval time.Duration) ManagerOption {
	return func(o *managerOptions) { o.pollInterval = interval }
}

// WithHeartbeat sets how often running jobs report liveness and how long a
// silent job may stay in processing before it is reclaimed.
func WithHeartbeat(interval, timeout time.Duration) ManagerOption {
	return func(o *managerOptions) {
		o.heartbeatInterval = interval
		o.heartbeatTimeout = timeout
	}
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, cleaner Cleaner, logger *slog.Logger, opts ...ManagerOption) *Manager {
	options := &managerOptions{
		pollInterval:      time.Duration(cfg.Daemon.PollIntervalSeconds) * time.Second,
		heartbeatInterval: defaultHeartbeatInterval,
		heartbeatTimeout:  defaultHeartbeatTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	return &Manager{
		cfg:          cfg,
		store:        store,
		cleaner:      cleaner,
		logger:       logger,
		metrics:      options.metrics,
		pollInterval: options.pollInterval,
		heartbeat:    NewHeartbeatMonitor(store, logger, options.heartbeatInterval, options.heartbeatTimeout),
	}
}
