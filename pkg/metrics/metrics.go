// Package metrics provides the Prometheus registry and the HTTP endpoints for
// the photo feed client. All metrics are defined in their respective packages
// (imagecache, fetch, pagination, transport, ratelimit) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the feed client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Image Cache Metrics (pkg/imagecache):
//   - feed_image_cache_hits_total (Counter): Lookups answered from the cache
//   - feed_image_cache_misses_total (Counter): Lookups not in the cache
//   - feed_image_cache_evictions_total (Counter): Entries evicted by the LRU policy
//   - feed_image_cache_entries (Gauge): Resident entries
//   - feed_image_cache_bytes (Gauge): Encoded bytes of resident entries
//
// Image Fetch Metrics (pkg/fetch):
//   - feed_image_requests_total{result} (Counter): Requests by result (cache_hit, joined, fetched)
//   - feed_image_fetch_failures_total{class} (Counter): Failed fetches by error class
//   - feed_image_fetch_duration_seconds (Histogram): Fetch and decode duration
//   - feed_image_requests_in_flight (Gauge): URLs currently being fetched
//
// Page Metrics (pkg/pagination):
//   - feed_page_fetches_total{result} (Counter): Page fetches by result (success or error class)
//   - feed_page_fetch_duration_seconds (Histogram): Page fetch duration
//   - feed_page_items_total (Counter): Items appended to the item list
//   - feed_page_items_skipped_total (Counter): Page objects without an image URL
//
// HTTP Metrics (pkg/transport):
//   - feed_http_requests_total{host, status} (Counter): Requests by host and HTTP status or error class
//   - feed_http_request_duration_seconds{host} (Histogram): Request duration by host
//
// Quota Metrics (pkg/ratelimit):
//   - feed_quota_remaining (Gauge): Requests remaining in the API quota window
//   - feed_quota_blocks_total (Counter): Page requests blocked by a critical quota
//   - feed_quota_throttles_total (Counter): Page requests delayed by a low quota
//
// Example Prometheus Queries:
//
//   # Image Cache Hit Rate
//   sum(rate(feed_image_cache_hits_total[5m])) /
//   (sum(rate(feed_image_cache_hits_total[5m])) + sum(rate(feed_image_cache_misses_total[5m])))
//
//   # Single-flight Savings
//   rate(feed_image_requests_total{result="joined"}[5m])
//
//   # Quota Status
//   feed_quota_remaining < 10
//
//   # P95 Page Latency
//   histogram_quantile(0.95, rate(feed_page_fetch_duration_seconds_bucket[5m]))

// ReadyFunc reports whether a dependency is usable.
type ReadyFunc func(ctx context.Context) error

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HealthHandler always answers 200 OK.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// ReadyHandler answers 200 OK when every check passes and 503 otherwise.
func ReadyHandler(checks ...ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check(ctx); err != nil {
				http.Error(w, fmt.Sprintf("not ready: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// NewServer returns an HTTP server exposing /metrics, /health and /ready.
func NewServer(addr string, checks ...ReadyFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/ready", ReadyHandler(checks...))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
