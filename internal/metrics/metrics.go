package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// RunsTotal counts dispatch runs by terminal status
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_runs_total", Help: "Dispatch runs by status."},
		[]string{"status"},
	)
	// RunDuration records end-to-end dispatch run durations in seconds
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "dispatch_run_duration_seconds", Help: "Dispatch run duration in seconds.", Buckets: prometheus.DefBuckets},
	)
	// RequestsAssigned counts request placement outcomes per run
	RequestsAssigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_requests_total", Help: "Requests by placement outcome."},
		[]string{"outcome"}, // assigned | forced | skipped
	)
	// VehiclesDegraded counts vehicles that finished a run without geometry
	VehiclesDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_vehicles_degraded_total", Help: "Vehicles sequenced without route geometry."},
	)

	// ProviderRequests counts route-provider HTTP calls by outcome
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_provider_requests_total", Help: "Route provider HTTP requests by outcome."},
		[]string{"outcome"}, // ok | error
	)
	// ProviderDuration records route-provider call durations in seconds
	ProviderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_provider_request_duration_seconds", Help: "Route provider request duration in seconds.", Buckets: prometheus.DefBuckets},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(RunsTotal)
		Registry.MustRegister(RunDuration)
		Registry.MustRegister(RequestsAssigned)
		Registry.MustRegister(VehiclesDegraded)
		Registry.MustRegister(ProviderRequests)
		Registry.MustRegister(ProviderDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
