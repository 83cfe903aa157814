// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transport

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmsync_http_requests_total",
			Help: "Outbound backend requests by client and status code",
		},
		[]string{"client", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pmsync_http_request_duration_seconds",
			Help:    "Latency of outbound backend requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"client"},
	)

	HTTPRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmsync_http_retries_total",
			Help: "Outbound request retries by reason (backoff, rate_limited)",
		},
		[]string{"client", "reason"},
	)

	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pmsync_rate_limit_wait_seconds",
			Help:    "Time spent waiting on the per-minute request window",
			Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120},
		},
		[]string{"client"},
	)

	// Circuit breaker

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pmsync_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmsync_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmsync_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"},
	)

	// Sync engine

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmsync_sync_runs_total",
			Help: "Project sync runs by service type and final status",
		},
		[]string{"service_type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pmsync_sync_duration_seconds",
			Help:    "Duration of project sync runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		},
		[]string{"service_type"},
	)

	SyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmsync_sync_items_total",
			Help: "Records written by sync runs, by kind",
		},
		[]string{"kind"},
	)

	SyncItemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmsync_sync_item_errors_total",
			Help: "Records skipped because their write failed, by kind",
		},
		[]string{"kind"},
	)

	// Manager

	ConnectedServices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pmsync_connected_services",
			Help: "Number of services with a live adapter",
		},
	)

	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmsync_health_checks_total",
			Help: "Service health probes by service type and status",
		},
		[]string{"service_type", "status"},
	)

	// API

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pmsync_api_requests_total",
			Help: "API requests by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pmsync_api_request_duration_seconds",
			Help:    "API request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
