package queue_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"wmclean/internal/queue"
	"wmclean/internal/testsupport"
)

func TestNewJobRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item, err := store.NewJob(ctx, queue.JobRequest{SourcePath: "/data/scan.pdf", ColorMode: "yellow", Tier: "light"})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if item.ID == 0 || item.CorrelationID == "" {
		t.Fatalf("expected id and correlation id, got %+v", item)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}
	if item.ColorMode != "yellow" || item.Tier != "light" || item.Kind != "" {
		t.Fatalf("unexpected overrides: %+v", item)
	}
	if item.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}
	if item.DisplayName() != "scan.pdf" {
		t.Fatalf("unexpected display name %q", item.DisplayName())
	}

	missing, err := store.GetByID(ctx, item.ID+100)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing job, got %v, %v", missing, err)
	}
}

func TestNewJobRequiresPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.NewJob(context.Background(), queue.JobRequest{SourcePath: "  "}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNewJobMakesPathAbsolute(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	t.Chdir(t.TempDir())

	item := testsupport.NewJob(t, store, "photo.png")
	if !filepath.IsAbs(item.SourcePath) || filepath.Base(item.SourcePath) != "photo.png" {
		t.Fatalf("expected absolute source path, got %q", item.SourcePath)
	}
}

func TestClaimNextIsOrderedAndExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/in/a.png")
	second := testsupport.NewJob(t, store, "/in/b.png")

	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID || claimed.Status != queue.StatusProcessing {
		t.Fatalf("expected first job processing, got %+v", claimed)
	}
	if claimed.LastHeartbeat == nil {
		t.Fatal("expected heartbeat on claim")
	}

	next, err := store.ClaimNext(ctx)
	if err != nil || next == nil || next.ID != second.ID {
		t.Fatalf("expected second job, got %+v, %v", next, err)
	}

	none, err := store.ClaimNext(ctx)
	if err != nil || none != nil {
		t.Fatalf("expected empty queue, got %+v, %v", none, err)
	}
}

func TestUpdatePersistsResults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewJob(t, store, "/in/clip.mp4")
	item.Status = queue.StatusCompleted
	item.OutputPath = "/out/clip_cleaned.mp4"
	item.Kind = "video"
	item.Units = 10
	item.RemoteUnits = 6
	item.LocalUnits = 3
	item.PassthroughUnits = 1
	item.Attempts = 9
	item.ReportJSON = `{"units":10}`
	item.SetProgress("Completed", 100)
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusCompleted || got.OutputPath != item.OutputPath || got.Kind != "video" {
		t.Fatalf("unexpected job: %+v", got)
	}
	if got.Units != 10 || got.RemoteUnits != 6 || got.LocalUnits != 3 || got.PassthroughUnits != 1 || got.Attempts != 9 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if !got.Degraded() || !got.IsTerminal() {
		t.Fatal("expected degraded terminal job")
	}
	if got.ProgressPercent != 100 || got.ReportJSON != `{"units":10}` {
		t.Fatalf("unexpected progress or report: %+v", got)
	}
}

func TestResetAndReclaimProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/in/a.png")
	testsupport.NewJob(t, store, "/in/b.png")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	reclaimed, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-time.Hour))
	if err != nil || reclaimed != 0 {
		t.Fatalf("fresh heartbeat should not be reclaimed: %d, %v", reclaimed, err)
	}
	reclaimed, err = store.ReclaimStaleProcessing(ctx, time.Now().Add(time.Hour))
	if err != nil || reclaimed != 1 {
		t.Fatalf("expected one reclaimed job: %d, %v", reclaimed, err)
	}

	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	reset, err := store.ResetStuckProcessing(ctx)
	if err != nil || reset != 1 {
		t.Fatalf("expected one reset job: %d, %v", reset, err)
	}
	pending, err := store.List(ctx, queue.StatusPending)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected both jobs pending, got %d, %v", len(pending), err)
	}
}

func TestRetryRules(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	failed := testsupport.NewJob(t, store, "/in/a.png")
	failed.SetFailed(queue.StatusFailed, "provider outage")
	rejected := testsupport.NewJob(t, store, "/in/b.txt")
	rejected.SetFailed(queue.StatusRejected, "unsupported input")
	for _, item := range []*queue.Item{failed, rejected} {
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	n, err := store.Retry(ctx)
	if err != nil || n != 1 {
		t.Fatalf("bulk retry should only touch failed jobs: %d, %v", n, err)
	}
	got, _ := store.GetByID(ctx, failed.ID)
	if got.Status != queue.StatusPending || got.ErrorMessage != "" {
		t.Fatalf("unexpected retried job: %+v", got)
	}

	n, err = store.Retry(ctx, rejected.ID)
	if err != nil || n != 1 {
		t.Fatalf("explicit retry should include rejected jobs: %d, %v", n, err)
	}
}

func TestFailProcessingOnShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := testsupport.NewJob(t, store, "/in/a.png")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	n, err := store.FailProcessing(ctx, queue.DaemonStopReason)
	if err != nil || n != 1 {
		t.Fatalf("FailProcessing: %d, %v", n, err)
	}
	got, _ := store.GetByID(ctx, item.ID)
	if got.Status != queue.StatusFailed || got.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestRemoveClearAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewJob(t, store, "/in/a.png")
	b := testsupport.NewJob(t, store, "/in/b.png")
	testsupport.NewJob(t, store, "/in/c.png")
	b.Status = queue.StatusCompleted
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Pending != 2 || health.Completed != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	removed, err := store.Remove(ctx, a.ID)
	if err != nil || !removed {
		t.Fatalf("Remove: %v, %v", removed, err)
	}
	removed, err = store.Remove(ctx, a.ID)
	if err != nil || removed {
		t.Fatalf("second Remove should report false: %v, %v", removed, err)
	}

	cleared, err := store.Clear(ctx, queue.StatusCompleted)
	if err != nil || cleared != 1 {
		t.Fatalf("Clear completed: %d, %v", cleared, err)
	}
	cleared, err = store.Clear(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("Clear all: %d, %v", cleared, err)
	}

	db, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !db.DatabaseExists || !db.DatabaseReadable || !db.TableExists || !db.IntegrityCheck {
		t.Fatalf("unexpected database health: %+v", db)
	}
	if len(db.MissingColumns) != 0 || db.SchemaVersion != 1 || db.TotalItems != 0 {
		t.Fatalf("unexpected schema state: %+v", db)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Rejected "); !ok || status != queue.StatusRejected {
		t.Fatalf("ParseStatus = %q, %v", status, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status")
	}
}
