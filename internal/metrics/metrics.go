// Package metrics provides Prometheus instrumentation for the payorch server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcessesSubmitted counts process-tracker jobs created.
	ProcessesSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "processes_submitted_total",
		Help:      "Total number of tracker processes submitted.",
	}, []string{"workflow"})

	// ProcessesRetried counts tracker jobs re-armed for another run.
	ProcessesRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "processes_retried_total",
		Help:      "Total number of tracker process retries scheduled.",
	}, []string{"workflow"})

	// ProcessesFinished counts tracker jobs retired, by business outcome.
	ProcessesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "processes_finished_total",
		Help:      "Total number of tracker processes finished.",
	}, []string{"workflow", "business_status"})

	// SyncsExecuted counts payment sync workflow executions.
	SyncsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "syncs_executed_total",
		Help:      "Total number of payment status sync executions.",
	}, []string{"connector"})

	// SyncDuration tracks payment sync execution latency.
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "payorch",
		Name:      "sync_duration_seconds",
		Help:      "Duration of payment status sync executions in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"connector"})

	// TimeoutEscalations counts payments force-failed after retries exhausted
	// with no connector transaction reference.
	TimeoutEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "timeout_escalations_total",
		Help:      "Total number of payments moved to failed on sync timeout.",
	})

	// RoutingActivations counts routing algorithm activations.
	RoutingActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "routing_activations_total",
		Help:      "Total number of routing algorithm activations.",
	}, []string{"transaction_type"})

	// RoutingValidationFailures counts algorithms rejected by connector
	// validation.
	RoutingValidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "routing_validation_failures_total",
		Help:      "Total number of routing algorithms rejected by validation.",
	})

	// WebhooksDelivered counts outgoing webhook delivery attempts by result.
	WebhooksDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "webhooks_delivered_total",
		Help:      "Total number of outgoing webhook delivery attempts.",
	}, []string{"event_type", "result"})

	// InvalidationsPublished counts cache invalidation keys published.
	InvalidationsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "invalidations_published_total",
		Help:      "Total number of cache invalidation keys published.",
	})

	// ServerInfo exposes static server metadata as labels.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "payorch",
		Name:      "server_info",
		Help:      "Static server metadata.",
	}, []string{"version", "backend"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payorch",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "payorch",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Init sets static server metadata on the info metric.
func Init(version, backend string) {
	ServerInfo.WithLabelValues(version, backend).Set(1)
}
