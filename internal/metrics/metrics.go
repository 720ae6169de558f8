// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCRequests counts Connect requests by procedure and result code.
	RPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitledger_rpc_requests_total",
			Help: "Total number of RPC requests",
		},
		[]string{"procedure", "code"},
	)

	// RPCDuration observes Connect request latency.
	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splitledger_rpc_request_duration_seconds",
			Help:    "Duration of RPC requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"procedure"},
	)

	// LedgerOps counts ledger mutations by operation and outcome.
	LedgerOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitledger_ledger_operations_total",
			Help: "Total number of ledger mutations",
		},
		[]string{"operation", "outcome"},
	)

	// VersionConflicts counts optimistic concurrency retries.
	VersionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "splitledger_version_conflicts_total",
			Help: "Total number of scope version conflicts on append",
		},
	)

	// SnapshotLookups counts snapshot cache lookups by result: hit, miss, stale or error.
	SnapshotLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitledger_snapshot_lookups_total",
			Help: "Total number of balance snapshot cache lookups",
		},
		[]string{"result"},
	)

	// EventPublishErrors counts events that could not be delivered.
	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "splitledger_event_publish_errors_total",
			Help: "Total number of ledger events that failed to publish",
		},
	)
)
