package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks console HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total console HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current console HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// ClientRequestsTotal counts API client requests by endpoint, method and status
	ClientRequestsTotal *prometheus.CounterVec
	// ClientRequestDuration tracks API client round trip latency
	ClientRequestDuration *prometheus.HistogramVec
	// ClientRequestsInFlight current API client requests awaiting a response
	ClientRequestsInFlight prometheus.Gauge
	// ClientDiscoveries counts api_url discovery attempts by result
	ClientDiscoveries *prometheus.CounterVec
	// ValidationFailures counts 400 responses by endpoint
	ValidationFailures *prometheus.CounterVec
	// ConfigReloads counts config hot reloads by result
	ConfigReloads *prometheus.CounterVec
	// Notifications counts failed-job notifications by result
	Notifications *prometheus.CounterVec
	// ErrorCounter counts errors by type and endpoint
	ErrorCounter *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	latencyBuckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   latencyBuckets,
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		ClientRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_requests_total",
				Help:      "Total number of API requests issued by the client",
			},
			[]string{"endpoint", "method", "status"},
		),
		ClientRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "client_request_duration_seconds",
				Help:      "API client round trip latency in seconds",
				Buckets:   latencyBuckets,
			},
			[]string{"endpoint", "method"},
		),
		ClientRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "client_requests_in_flight",
				Help:      "Current number of API requests awaiting a response",
			},
		),
		ClientDiscoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_discoveries_total",
				Help:      "Total number of api_url discovery attempts",
			},
			[]string{"result"},
		),
		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Total number of requests rejected with validation errors",
			},
			[]string{"endpoint"},
		),
		ConfigReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of config reloads",
			},
			[]string{"result"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of failed job notifications",
			},
			[]string{"result"},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "endpoint", "method"},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.ClientRequestsTotal,
		m.ClientRequestDuration,
		m.ClientRequestsInFlight,
		m.ClientDiscoveries,
		m.ValidationFailures,
		m.ConfigReloads,
		m.Notifications,
		m.ErrorCounter,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordClientRequest records a completed API round trip
func (m *Metrics) RecordClientRequest(endpoint, method, status string, durationSeconds float64) {
	m.ClientRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.ClientRequestDuration.WithLabelValues(endpoint, method).Observe(durationSeconds)
}

// RecordDiscovery records an api_url discovery attempt
func (m *Metrics) RecordDiscovery(result string) {
	m.ClientDiscoveries.WithLabelValues(result).Inc()
}

// RecordValidationFailure records a 400 response
func (m *Metrics) RecordValidationFailure(endpoint string) {
	m.ValidationFailures.WithLabelValues(endpoint).Inc()
}

// RecordConfigReload records a config reload attempt
func (m *Metrics) RecordConfigReload(result string) {
	m.ConfigReloads.WithLabelValues(result).Inc()
}

// RecordNotification records a notification attempt
func (m *Metrics) RecordNotification(result string) {
	m.Notifications.WithLabelValues(result).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, endpoint, method string) {
	m.ErrorCounter.WithLabelValues(errorType, endpoint, method).Inc()
}
