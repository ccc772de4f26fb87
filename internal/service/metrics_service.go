package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the instruments the API
// records into.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	decisions    *prometheus.CounterVec
	cacheOps     *prometheus.CounterVec
}

// NewMetricsService builds a registry with process and Go collectors plus
// the API instruments.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Count of HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registrar_decisions_total",
		Help: "Count of adjudicated enrollment requests by kind and outcome.",
	}, []string{"kind", "outcome"})

	cacheOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_operations_total",
		Help: "Count of catalog cache operations by type and result.",
	}, []string{"operation", "result"})

	registry.MustRegister(httpRequests, httpDuration, decisions, cacheOps)

	return &MetricsService{
		registry:     registry,
		httpRequests: httpRequests,
		httpDuration: httpDuration,
		decisions:    decisions,
		cacheOps:     cacheOps,
	}
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	s.httpRequests.WithLabelValues(method, path, status).Inc()
	s.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDecision records one adjudication outcome.
func (s *MetricsService) RecordDecision(kind, outcome string) {
	if kind == "" {
		kind = "unknown"
	}
	s.decisions.WithLabelValues(kind, outcome).Inc()
}

// RecordCacheOperation records a catalog cache hit, miss or error.
func (s *MetricsService) RecordCacheOperation(operation, result string) {
	s.cacheOps.WithLabelValues(operation, result).Inc()
}

// Handler exposes the registry for scraping.
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
