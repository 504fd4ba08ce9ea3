package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for page loading.
var (
	pageFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_page_fetches_total",
		Help: "Total page fetches by result (success or error class)",
	}, []string{"result"})

	pageFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_page_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	pageItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_page_items_total",
		Help: "Total items appended to the item list",
	})

	pageItemsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_page_items_skipped_total",
		Help: "Total page objects skipped for missing or invalid urls.regular",
	})
)
