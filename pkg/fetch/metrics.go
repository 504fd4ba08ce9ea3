package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for image requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_image_requests_total",
		Help: "Total image requests by result (cache_hit, joined, fetched)",
	}, []string{"result"})

	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_image_fetch_failures_total",
		Help: "Total failed image fetches by error class",
	}, []string{"class"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_image_fetch_duration_seconds",
		Help:    "Image fetch and decode duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	inFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_image_requests_in_flight",
		Help: "Number of image fetches currently in flight",
	})
)
