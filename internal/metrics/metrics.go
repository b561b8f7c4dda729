// Package metrics defines the Prometheus collectors for the rating engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rating Engine Metrics
var (
	// RatingsAcceptedTotal counts accepted ratings by outcome (rated/removed)
	RatingsAcceptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratings_accepted_total",
			Help: "Total accepted ratings by outcome",
		},
		[]string{"outcome"},
	)

	// RatingsRejectedTotal counts rejected ratings by reason
	RatingsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratings_rejected_total",
			Help: "Total rejected ratings by reason (self_rating/invalid_score/rate_limited)",
		},
		[]string{"reason"},
	)

	// RemovalsTriggeredTotal counts removal actions decided by the engine
	RemovalsTriggeredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "removals_triggered_total",
			Help: "Total member removals triggered by sustained low ratings",
		},
	)

	// RemovalNotifyErrorsTotal counts failed removal-webhook deliveries
	RemovalNotifyErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "removal_notify_errors_total",
			Help: "Total removal notifications that could not be delivered",
		},
	)
)

// Rating Store Metrics
var (
	// StoreOpsTotal tracks store operations by operation and status
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_store_operations_total",
			Help: "Total rating store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// StoreOpDuration tracks store operation latency in seconds
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rating_store_operation_duration_seconds",
			Help:    "Rating store operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// StoreRetriesTotal counts transparent retries of serialization conflicts
	StoreRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rating_store_retries_total",
			Help: "Total store transactions retried after a serialization conflict",
		},
	)
)
