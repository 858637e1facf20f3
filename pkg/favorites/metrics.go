package favorites

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_pages_fetched_total",
		Help: "Favorite pages loaded by entity kind and outcome",
	}, []string{"kind", "outcome"})

	reconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "favorites_reconcile_duration_seconds",
		Help:    "Time to resolve one page of references into entities",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"kind"})

	reordersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_reorders_total",
		Help: "Reorder attempts by outcome (success, server_error, transport_error)",
	}, []string{"outcome"})

	staleUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "favorites_stale_updates_total",
		Help: "Completions dropped because the list was reset or closed meanwhile",
	})
)
