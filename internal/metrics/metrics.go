// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	harvestPagesTotal        prometheus.Counter
	harvestRowsTotal         *prometheus.CounterVec
	reconcileRecordsTotal    *prometheus.CounterVec
	reconcilePassesTotal     *prometheus.CounterVec
	harvestRunDuration prometheus.Histogram

	once sync.Once
)

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "harvester_pages_total",
			Help: "Total number of result pages walked.",
		})

		harvestRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_rows_total",
				Help: "Total rows seen, labeled by outcome (extracted or rejected).",
			},
			[]string{"outcome"},
		)

		reconcileRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_reconcile_records_total",
				Help: "Records processed per reconciliation pass, labeled by outcome (inserted, updated, unchanged).",
			},
			[]string{"outcome"},
		)

		reconcilePassesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_reconcile_passes_total",
				Help: "Reconciliation passes, labeled by result (committed or failed).",
			},
			[]string{"result"},
		)

		harvestRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_run_duration_seconds",
			Help:    "Wall-clock duration of complete harvest runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		})
	})
}

// IncPage counts one walked result page.
func IncPage() {
	if harvestPagesTotal != nil {
		harvestPagesTotal.Inc()
	}
}

// IncRow counts one row by outcome ("extracted" or "rejected").
func IncRow(outcome string) {
	if harvestRowsTotal != nil {
		harvestRowsTotal.WithLabelValues(outcome).Inc()
	}
}

// AddReconciled counts reconciled records by outcome.
func AddReconciled(outcome string, n int) {
	if reconcileRecordsTotal != nil && n > 0 {
		reconcileRecordsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// IncPass counts one reconciliation pass by result.
func IncPass(result string) {
	if reconcilePassesTotal != nil {
		reconcilePassesTotal.WithLabelValues(result).Inc()
	}
}

// ObserveRunDuration records the duration of a full harvest run in seconds.
func ObserveRunDuration(seconds float64) {
	if harvestRunDuration != nil {
		harvestRunDuration.Observe(seconds)
	}
}
