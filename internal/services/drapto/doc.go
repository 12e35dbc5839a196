// Package drapto wraps the Drapto Go library for the optional AV1 re-encode
// of cleaned videos. A reporter adapter turns Drapto's callbacks into
// ProgressUpdate values and log records.
package drapto
