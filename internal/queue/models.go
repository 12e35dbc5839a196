package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queued job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	// StatusFailed jobs may succeed when retried (provider outages, tool
	// crashes, reassembly failures).
	StatusFailed Status = "failed"
	// StatusRejected jobs will fail again unchanged: unreadable input or
	// invalid settings.
	StatusRejected Status = "rejected"
)

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusRejected,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Rejected   int
	Completed  int
}

// Item represents a job persisted in SQLite.
type Item struct {
	ID            int64
	CorrelationID string
	SourcePath    string
	OutputPath    string
	// Kind, ColorMode and Tier are per-job overrides; empty means detect or
	// use the configured default.
	Kind      string
	ColorMode string
	Tier      string

	Status          Status
	ErrorMessage    string
	ProgressPercent float64
	ProgressMessage string

	Units            int
	RemoteUnits      int
	LocalUnits       int
	SkippedUnits     int
	PassthroughUnits int
	Attempts         int
	ReportJSON       string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// JobRequest describes a job to enqueue.
type JobRequest struct {
	SourcePath string
	Kind       string
	ColorMode  string
	Tier       string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the job is in flight.
func (i Item) IsProcessing() bool {
	return i.Status == StatusProcessing
}

// IsTerminal reports whether the job finished, successfully or not.
func (i Item) IsTerminal() bool {
	switch i.Status {
	case StatusCompleted, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

// Degraded reports whether a completed job had units that missed the remote
// path because of a failure.
func (i Item) Degraded() bool {
	return i.PassthroughUnits > 0 || (i.LocalUnits > 0 && i.Attempts > 0)
}

// SetProgress updates the progress fields together.
func (i *Item) SetProgress(message string, percent float64) {
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetFailed marks the item with a terminal failure status.
func (i *Item) SetFailed(status Status, message string) {
	i.Status = status
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
}

// DisplayName is the file name shown in listings.
func (i Item) DisplayName() string {
	name := i.SourcePath
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return "(unnamed)"
	}
	return name
}
