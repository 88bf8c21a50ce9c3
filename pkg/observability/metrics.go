package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of the service. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Ingestion metrics
	StageDuration   *prometheus.HistogramVec
	PipelineRuns    *prometheus.CounterVec
	SchedulerEvents *prometheus.CounterVec
	InFlight        prometheus.Gauge

	// Merge metrics
	Merges       *prometheus.CounterVec
	MergeRetries prometheus.Counter

	// Token cache metrics
	TokenCache *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingestion_stage_duration_seconds",
				Help:      "Duration of ingestion pipeline stages",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage", "outcome"},
		),
		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_runs_total",
				Help:      "Finished ingestion pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		SchedulerEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_scheduler_events_total",
				Help:      "Scheduler submissions by result",
			},
			[]string{"result"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ingestion_in_flight",
				Help:      "Pipelines currently running",
			},
		),
		Merges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_merges_total",
				Help:      "Guest account merges by outcome",
			},
			[]string{"outcome"},
		),
		MergeRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_merge_retries_total",
				Help:      "Merge transactions retried after a conflict",
			},
		),
		TokenCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_cache_lookups_total",
				Help:      "Verified token cache lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.StageDuration,
		c.PipelineRuns,
		c.SchedulerEvents,
		c.InFlight,
		c.Merges,
		c.MergeRetries,
		c.TokenCache,
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordStage(stage, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

func (c *Collector) RecordPipelineRun(outcome string) {
	if c == nil {
		return
	}
	c.PipelineRuns.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSchedulerEvent(result string) {
	if c == nil {
		return
	}
	c.SchedulerEvents.WithLabelValues(result).Inc()
}

func (c *Collector) PipelineStarted() {
	if c == nil {
		return
	}
	c.InFlight.Inc()
}

func (c *Collector) PipelineFinished() {
	if c == nil {
		return
	}
	c.InFlight.Dec()
}

func (c *Collector) RecordMerge(outcome string) {
	if c == nil {
		return
	}
	c.Merges.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordMergeRetry() {
	if c == nil {
		return
	}
	c.MergeRetries.Inc()
}

func (c *Collector) RecordTokenCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.TokenCache.WithLabelValues("hit").Inc()
		return
	}
	c.TokenCache.WithLabelValues("miss").Inc()
}
