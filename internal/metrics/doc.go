// Package metrics exposes Prometheus counters for provider calls, fallbacks,
// chunk splitting and job outcomes.
package metrics
