package daemon_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wmclean/internal/config"
	"wmclean/internal/daemon"
	"wmclean/internal/daemonctl"
	"wmclean/internal/logging"
	"wmclean/internal/metrics"
	"wmclean/internal/pipeline"
	"wmclean/internal/queue"
	"wmclean/internal/testsupport"
	"wmclean/internal/workflow"
)

// blockingCleaner holds every job until the daemon shuts down.
type blockingCleaner struct {
	started chan struct{}
}

func (b *blockingCleaner) Clean(ctx context.Context, _ pipeline.Request) (*pipeline.Result, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func newDaemon(t *testing.T, cfg *config.Config, store *queue.Store, cleaner workflow.Cleaner, rec *metrics.Recorder) *daemon.Daemon {
	t.Helper()
	mgr := workflow.NewManager(cfg, store, cleaner, logging.NewNop(),
		workflow.WithPollInterval(5*time.Millisecond),
		workflow.WithHeartbeat(time.Hour, time.Hour),
	)
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr, rec)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store, &blockingCleaner{started: make(chan struct{}, 1)}, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() || status.QueueDBPath != cfg.QueueDBPath() {
		t.Fatalf("unexpected paths: %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if d.MetricsAddr() != "" {
		t.Fatal("expected metrics endpoint to be closed")
	}
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cleaner := &blockingCleaner{started: make(chan struct{}, 1)}

	first := newDaemon(t, cfg, store, cleaner, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	t.Cleanup(first.Stop)

	second := newDaemon(t, cfg, store, cleaner, nil)
	err := second.Start(context.Background())
	if err == nil {
		second.Stop()
		t.Fatal("expected lock conflict")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDaemonServesMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := metrics.New()
	rec.Job("completed")
	d := newDaemon(t, cfg, store, &blockingCleaner{started: make(chan struct{}, 1)}, rec)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	addr := d.MetricsAddr()
	if addr == "" {
		t.Fatal("expected metrics address")
	}
	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "wmclean_jobs_total") {
		t.Fatalf("metrics body missing job counter:\n%s", body)
	}
}

func TestDaemonStopFailsInFlightJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cleaner := &blockingCleaner{started: make(chan struct{}, 1)}
	d := newDaemon(t, cfg, store, cleaner, nil)

	source := filepath.Join(testsupport.BaseDir(cfg), "input.png")
	if err := os.WriteFile(source, []byte("png"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	job := testsupport.NewJob(t, store, source)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-cleaner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not picked up")
	}
	d.Stop()

	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusFailed || stored.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("unexpected job state %s %q", stored.Status, stored.ErrorMessage)
	}
}

func TestDaemonServesStatusSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store, &blockingCleaner{started: make(chan struct{}, 1)}, metrics.New())

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	status, err := daemonctl.FetchStatus(ctx, nil, d.MetricsAddr())
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected running daemon and worker, got %+v", status)
	}
	if status.QueueDBPath != cfg.QueueDBPath() || status.MetricsAddr != d.MetricsAddr() {
		t.Fatalf("unexpected snapshot %+v", status)
	}
}

func TestEnqueueFileValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := filepath.Join(testsupport.BaseDir(cfg), "doc.pdf")
	if err := os.WriteFile(source, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	cases := []struct {
		name    string
		req     queue.JobRequest
		wantErr bool
	}{
		{"empty path", queue.JobRequest{}, true},
		{"missing file", queue.JobRequest{SourcePath: source + ".missing"}, true},
		{"directory", queue.JobRequest{SourcePath: testsupport.BaseDir(cfg)}, true},
		{"unknown kind", queue.JobRequest{SourcePath: source, Kind: "hologram"}, true},
		{"unknown tier", queue.JobRequest{SourcePath: source, Tier: "extreme"}, true},
		{"unknown mode", queue.JobRequest{SourcePath: source, ColorMode: "purple"}, true},
		{"valid", queue.JobRequest{SourcePath: source, Kind: "pdf", Tier: "light"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item, err := daemon.EnqueueFile(ctx, store, tc.req)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("EnqueueFile: %v", err)
			}
			if item.Status != queue.StatusPending || item.Tier != "light" {
				t.Fatalf("unexpected item %+v", item)
			}
		})
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one queued job, got %d", len(items))
	}
}
