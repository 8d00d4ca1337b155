// Package metrics exposes Prometheus collectors for pipeline activity.
// Collectors register on the default registry; exposing them over HTTP is
// the embedding process's concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsStaged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry_etl",
		Name:      "rows_staged_total",
		Help:      "Raw rows landed in the staging buffer.",
	}, []string{"entity"})

	RowsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry_etl",
		Name:      "rows_rejected_total",
		Help:      "Staged rows rejected by the validation cascade.",
	}, []string{"entity", "error_code"})

	RowsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry_etl",
		Name:      "rows_inserted_total",
		Help:      "Production rows created by the loader.",
	}, []string{"entity"})

	RowsUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry_etl",
		Name:      "rows_updated_total",
		Help:      "Production rows updated in place by the loader.",
	}, []string{"entity"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "registry_etl",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of completed pipeline runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"entity", "status"})
)
