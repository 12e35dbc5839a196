// Package services defines shared utilities consumed by the pipeline stages
// and the remote provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, unit indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper. Provider failures are
//     classified as transient, fatal, or payload-too-large; decode and
//     reassembly failures surface to callers as a single stage error.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
