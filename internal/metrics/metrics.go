package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the security pipeline
type Metrics struct {
	registry *prometheus.Registry

	// Scan metrics
	ScansTotal            *prometheus.CounterVec
	ScanCacheHits         prometheus.Counter
	ScanCacheMisses       prometheus.Counter
	ClassifierErrorsTotal prometheus.Counter

	// Flag metrics
	FlagsTotal *prometheus.CounterVec

	// Reputation metrics
	AuthorsBlockedTotal   prometheus.Counter
	AuthorsUnblockedTotal *prometheus.CounterVec

	// Rate limit metrics
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Audit metrics
	AuditEventsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Scan metrics
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scans_total",
				Help: "Total number of text scans by outcome",
			},
			[]string{"result"},
		),
		ScanCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scan_cache_hits_total",
				Help: "Total number of scan cache hits",
			},
		),
		ScanCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scan_cache_misses_total",
				Help: "Total number of scan cache misses",
			},
		),
		ClassifierErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "classifier_errors_total",
				Help: "Total number of failed classifier scoring calls",
			},
		),

		// Flag metrics
		FlagsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_flags_total",
				Help: "Total number of content flags by source",
			},
			[]string{"source"},
		),

		// Reputation metrics
		AuthorsBlockedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authors_blocked_total",
				Help: "Total number of authors auto-blocked",
			},
		),
		AuthorsUnblockedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authors_unblocked_total",
				Help: "Total number of authors unblocked by method",
			},
			[]string{"method"},
		),

		// Rate limit metrics
		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_rejections_total",
				Help: "Total number of outbound actions rejected by the rate limiter",
			},
			[]string{"action"},
		),

		// Audit metrics
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_total",
				Help: "Total number of audit events written by type",
			},
			[]string{"event"},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	// Scan metrics
	m.registry.MustRegister(m.ScansTotal)
	m.registry.MustRegister(m.ScanCacheHits)
	m.registry.MustRegister(m.ScanCacheMisses)
	m.registry.MustRegister(m.ClassifierErrorsTotal)

	// Flag metrics
	m.registry.MustRegister(m.FlagsTotal)

	// Reputation metrics
	m.registry.MustRegister(m.AuthorsBlockedTotal)
	m.registry.MustRegister(m.AuthorsUnblockedTotal)

	// Rate limit metrics
	m.registry.MustRegister(m.RateLimitRejectionsTotal)

	// Audit metrics
	m.registry.MustRegister(m.AuditEventsTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
