// Package metrics exposes prometheus instruments for the state engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation metrics - one series per feature operation and outcome
var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learnify_operations_total",
			Help: "Total number of dispatched operations by feature, operation and outcome",
		},
		[]string{"feature", "operation", "outcome"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "learnify_operation_duration_seconds",
			Help:    "Time taken to serve an operation, including store lock wait",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feature", "operation"},
	)

	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "learnify_audit_failures_total",
		Help: "Total number of audit entries that could not be recorded",
	})
)

// State metrics - current size of the stores
var (
	RegisteredUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "learnify_registered_users",
		Help: "Number of identities with a registered role",
	})

	LeaderboardEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "learnify_leaderboard_entries",
		Help: "Number of identities on the leaderboard",
	})

	Wallets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "learnify_wallets",
		Help: "Number of wallets",
	})

	StakingSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "learnify_staking_sessions",
		Help: "Number of open staking sessions",
	})
)

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Observe records one finished operation.
func Observe(feature, operation string, err error, seconds float64) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	OperationsTotal.WithLabelValues(feature, operation, outcome).Inc()
	OperationDuration.WithLabelValues(feature, operation).Observe(seconds)
}
