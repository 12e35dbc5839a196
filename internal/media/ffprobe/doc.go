// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs the executable; Parse decodes captured output. Helpers on
// Result pick the primary video stream, detect audio, and resolve frame
// rates and durations.
package ffprobe
