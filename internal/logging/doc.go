// Package logging assembles structured slog loggers and formatting helpers used
// across wmclean.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job IDs, stages, unit indexes, and correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
