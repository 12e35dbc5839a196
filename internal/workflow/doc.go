// Package workflow drains the job queue through the cleaning pipeline.
//
// The Manager claims the oldest pending job, keeps its heartbeat fresh while
// the pipeline runs, writes the cleaned file next to the configured output
// directory, and records unit counts and the degradation report on the job.
// Failures are classified with services.FailureStatus so jobs that would fail
// again unchanged are marked rejected instead of failed. Stale processing
// jobs left behind by a crashed worker are reclaimed before each claim.
package workflow
