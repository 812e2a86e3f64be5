// Package metrics holds the process-wide prometheus collectors, exposed on
// GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "offerscout"

var (
	// QueriesTotal counts handled queries by status ("success", "failed").
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Queries handled by the orchestrator.",
	}, []string{"status"})

	// QueryDuration observes end-to-end query time.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "End-to-end query duration.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
	})

	// SourceRunsTotal counts Page Driver runs by source and outcome
	// ("found", "empty", "timeout", "fault").
	SourceRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_runs_total",
		Help:      "Page Driver runs by source and outcome.",
	}, []string{"source", "outcome"})

	// DriveFaultsTotal counts absorbed drive errors by taxonomy code.
	DriveFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "drive_faults_total",
		Help:      "Absorbed Page Driver errors by source and code.",
	}, []string{"source", "code"})

	// DriveDuration observes one Page Driver run per source.
	DriveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "drive_duration_seconds",
		Help:      "Page Driver run duration by source.",
		Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 35},
	}, []string{"source"})

	// ActiveTabs tracks open tabs across engines.
	ActiveTabs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_tabs",
		Help:      "Tabs currently open.",
	})

	// BlockedRequestsTotal counts browser requests failed by the block
	// policy, by source and reason ("resource_type", "domain").
	BlockedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocked_requests_total",
		Help:      "Browser requests blocked before leaving the tab.",
	}, []string{"source", "reason"})

	// RelayMessagesTotal counts relay deliveries by sink and result
	// ("delivered", "dropped", "failed").
	RelayMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_messages_total",
		Help:      "Relay message deliveries by sink and result.",
	}, []string{"sink", "result"})
)
