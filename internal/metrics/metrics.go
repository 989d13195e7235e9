// Package metrics exposes Prometheus instrumentation for the dispenser service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus collectors of the service on a private registry.
type Metrics struct {
	breakdownsTotal    *prometheus.CounterVec
	coinsDispensed     *prometheus.CounterVec
	remainderTotal     prometheus.Counter
	detectionsTotal    *prometheus.CounterVec
	detectionDuration  *prometheus.HistogramVec
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		breakdownsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispenser_breakdowns_total",
				Help: "Total number of breakdown calculations by outcome",
			},
			[]string{"outcome"},
		),
		coinsDispensed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispenser_coins_dispensed_total",
				Help: "Total number of coins handed out by denomination",
			},
			[]string{"denomination"},
		),
		remainderTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dispenser_remainder_total",
				Help: "Sum of amounts that could not be dispensed",
			},
		),
		detectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispenser_detections_total",
				Help: "Total number of bill detections by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		detectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispenser_detection_duration_seconds",
				Help:    "Bill detection latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispenser_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispenser_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.breakdownsTotal,
		m.coinsDispensed,
		m.remainderTotal,
		m.detectionsTotal,
		m.detectionDuration,
		m.httpRequestsTotal,
		m.httpRequestSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveBreakdown records a successful breakdown.
func (m *Metrics) ObserveBreakdown(counts map[int]int, remainder int) {
	if m == nil {
		return
	}
	m.breakdownsTotal.WithLabelValues(OutcomeSuccess).Inc()
	for denomination, count := range counts {
		m.coinsDispensed.WithLabelValues(strconv.Itoa(denomination)).Add(float64(count))
	}
	m.remainderTotal.Add(float64(remainder))
}

// ObserveBreakdownFailure records a rejected breakdown request.
func (m *Metrics) ObserveBreakdownFailure(outcome string) {
	if m == nil {
		return
	}
	m.breakdownsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDetection records a detection attempt.
func (m *Metrics) ObserveDetection(source, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.detectionsTotal.WithLabelValues(source, outcome).Inc()
	m.detectionDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// ObserveRequest records a served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
