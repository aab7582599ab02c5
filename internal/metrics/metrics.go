package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime metrics
var (
	// ConnectedViewers tracks live websocket viewers in the connection registry
	ConnectedViewers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_connected_viewers",
			Help: "Number of live viewer connections",
		},
	)

	// BroadcastFrames tracks per-connection frame outcomes (sent, write_error, slow_consumer)
	BroadcastFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_broadcast_frames_total",
			Help: "Frames delivered to viewer connections by result",
		},
		[]string{"result"},
	)

	// LifecycleEvents tracks committed lifecycle events by kind
	LifecycleEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_lifecycle_events_total",
			Help: "Committed lifecycle events by kind",
		},
		[]string{"kind"},
	)
)

// Webhook metrics
var (
	// WebhookAttempts tracks webhook attempts by event and result (success, failure, skipped)
	WebhookAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_webhook_attempts_total",
			Help: "Webhook delivery attempts by event and result",
		},
		[]string{"event", "result"},
	)

	// WebhookDuration tracks webhook round-trip latency in seconds
	WebhookDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qa_webhook_duration_seconds",
			Help:    "Webhook attempt duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// WebhookBreakerState tracks the circuit breaker state (0=closed, 1=half-open, 2=open)
	WebhookBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qa_webhook_breaker_state",
			Help: "Webhook circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// HTTP metrics
var (
	// HTTPRequestDuration tracks request latency by method, route and status
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qa_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// RateLimitRejections tracks submissions rejected by the rate limiter
	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qa_rate_limit_rejections_total",
			Help: "Requests rejected by the submission rate limiter",
		},
	)
)

// Database metrics
var (
	// DBQueryDuration tracks query latency by statement verb
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qa_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrors tracks failed queries by statement verb
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_db_errors_total",
			Help: "Database query errors",
		},
		[]string{"query"},
	)
)
