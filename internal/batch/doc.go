// Package batch runs per-unit work (pages, frames, chunks) on a bounded
// worker pool with index-addressed results.
package batch
