package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcomes.
const (
	OutcomeMatch         = "match"
	OutcomeFallback      = "fallback"
	OutcomeMiss          = "miss"
	OutcomeUninitialized = "uninitialized"
)

// Collector holds the Prometheus metrics for routers in this process.
type Collector struct {
	registry *prometheus.Registry

	Resolutions     *prometheus.CounterVec
	Acquisitions    *prometheus.CounterVec
	AcquireDuration *prometheus.HistogramVec
}

// NewCollector creates a collector on its own registry, so tests can create
// as many as they like without duplicate-registration panics.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	resolutions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of routing target resolutions",
		},
		[]string{"router", "outcome"},
	)

	acquisitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisitions_total",
			Help:      "Total number of connection acquisitions through a router",
		},
		[]string{"router", "status"},
	)

	acquireDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acquire_duration_seconds",
			Help:      "Connection acquisition latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"router"},
	)

	registry.MustRegister(resolutions, acquisitions, acquireDuration)

	return &Collector{
		registry:        registry,
		Resolutions:     resolutions,
		Acquisitions:    acquisitions,
		AcquireDuration: acquireDuration,
	}
}

// RecordResolution counts one resolution attempt.
func (c *Collector) RecordResolution(router, outcome string) {
	if c == nil {
		return
	}
	c.Resolutions.WithLabelValues(router, outcome).Inc()
}

// RecordAcquire counts one acquisition and observes its latency.
func (c *Collector) RecordAcquire(router string, d time.Duration, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.Acquisitions.WithLabelValues(router, status).Inc()
	c.AcquireDuration.WithLabelValues(router).Observe(d.Seconds())
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
