package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wmclean"

// Recorder collects pipeline counters. A nil *Recorder is valid and records
// nothing, so packages can take one unconditionally.
type Recorder struct {
	registry *prometheus.Registry

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	localFallbacks  prometheus.Counter
	chunkSplits     prometheus.Counter
	passthroughs    *prometheus.CounterVec
	units           *prometheus.CounterVec
	jobs            *prometheus.CounterVec
}

// New registers the wmclean collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Remote provider calls by outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_seconds",
			Help:      "Wall time of remote provider calls, including polling.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"provider"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Transient provider failures that were retried.",
		}, []string{"provider"}),
		localFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_fallbacks_total",
			Help:      "Units repaired by the local inpainter after remote providers were exhausted.",
		}),
		chunkSplits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_splits_total",
			Help:      "Document chunks bisected after a payload-too-large response.",
		}),
		passthroughs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passthroughs_total",
			Help:      "Units or chunks returned unmodified.",
		}, []string{"scope"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Processed pages, frames and images by result.",
		}, []string{"kind", "result"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Queue jobs by final status.",
		}, []string{"status"}),
	}
	reg.MustRegister(
		r.providerCalls,
		r.providerLatency,
		r.retries,
		r.localFallbacks,
		r.chunkSplits,
		r.passthroughs,
		r.units,
		r.jobs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry for tests and custom handlers.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ProviderCall(provider, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
	r.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (r *Recorder) Retry(provider string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(provider).Inc()
}

func (r *Recorder) LocalFallback() {
	if r == nil {
		return
	}
	r.localFallbacks.Inc()
}

func (r *Recorder) ChunkSplit() {
	if r == nil {
		return
	}
	r.chunkSplits.Inc()
}

// Passthrough counts content returned unmodified; scope is "chunk", "frame"
// or "unit".
func (r *Recorder) Passthrough(scope string) {
	if r == nil {
		return
	}
	r.passthroughs.WithLabelValues(scope).Inc()
}

func (r *Recorder) Unit(kind, result string) {
	if r == nil {
		return
	}
	r.units.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) Job(status string) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(status).Inc()
}
