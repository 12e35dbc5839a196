package pipeline

import (
	"sync"
	"time"

	"wmclean/internal/chunking"
	"wmclean/internal/detect"
	"wmclean/internal/orchestrator"
	"wmclean/internal/video"
)

// Report makes partial degradation visible: how many units were repaired
// remotely, locally, or not at all.
type Report struct {
	RequestID string
	Kind      Kind
	Mode      detect.ColorMode
	Tier      detect.Tier

	Units int
	// Remote units were repaired by a provider, Local ones by the local
	// inpainter, Skipped ones had an empty mask, and Passthrough ones were
	// returned unmodified after a failure.
	Remote      int
	Local       int
	Skipped     int
	Passthrough int

	Attempts  int
	Retries   int
	Providers map[string]int

	Chunks *chunking.Report
	Video  *video.Report

	Elapsed time.Duration
}

// Degraded reports whether any unit missed the remote path because of a
// failure.
func (r Report) Degraded() bool {
	return r.Passthrough > 0 || (r.Local > 0 && r.Attempts > 0)
}

// tally accumulates unit outcomes from concurrent workers.
type tally struct {
	mu     sync.Mutex
	report Report
}

func newTally() *tally {
	return &tally{report: Report{Providers: make(map[string]int)}}
}

func (t *tally) record(rep orchestrator.Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Units++
	t.report.Attempts += rep.Attempts
	t.report.Retries += rep.Retries
	switch rep.Source {
	case orchestrator.SourceRemote:
		t.report.Remote++
		t.report.Providers[rep.Provider]++
	case orchestrator.SourceLocal:
		t.report.Local++
	default:
		t.report.Skipped++
	}
}

func (t *tally) remoteDocument(rep orchestrator.Report, pages int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Units += pages
	t.report.Remote += pages
	t.report.Attempts += rep.Attempts
	t.report.Retries += rep.Retries
	t.report.Providers[rep.Provider] += pages
}

// merge folds a finished sub-tally (one document chunk) into t.
func (t *tally) merge(sub Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Units += sub.Units
	t.report.Remote += sub.Remote
	t.report.Local += sub.Local
	t.report.Skipped += sub.Skipped
	t.report.Passthrough += sub.Passthrough
	t.report.Attempts += sub.Attempts
	t.report.Retries += sub.Retries
	for k, v := range sub.Providers {
		t.report.Providers[k] += v
	}
}

// mergeAttempts keeps the provider traffic of a sub-tally whose output was
// discarded.
func (t *tally) mergeAttempts(sub Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Attempts += sub.Attempts
	t.report.Retries += sub.Retries
}

// noteAttempts records provider traffic that produced no unit.
func (t *tally) noteAttempts(rep orchestrator.Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Attempts += rep.Attempts
	t.report.Retries += rep.Retries
}

func (t *tally) setChunks(rep chunking.Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Chunks = &rep
}

func (t *tally) setVideo(rep video.Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Video = &rep
}

func (t *tally) passthrough(units int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Units += units
	t.report.Passthrough += units
}

func (t *tally) snapshot() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.report
	out.Providers = make(map[string]int, len(t.report.Providers))
	for k, v := range t.report.Providers {
		out.Providers[k] = v
	}
	return out
}
