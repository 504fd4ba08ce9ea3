package imagecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks image cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_image_cache_hits_total",
			Help: "Total number of image cache hits",
		},
	)

	// CacheMisses tracks image cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_image_cache_misses_total",
			Help: "Total number of image cache misses",
		},
	)

	// CacheEvictions tracks entries evicted because capacity was exceeded
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_image_cache_evictions_total",
			Help: "Total number of image cache entries evicted for capacity",
		},
	)

	// CacheEntries tracks resident entries
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_image_cache_entries",
			Help: "Current number of decoded images in the cache",
		},
	)

	// CacheBytes tracks the encoded size of resident entries
	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_image_cache_bytes",
			Help: "Encoded bytes of decoded images currently in the cache",
		},
	)
)
