// Package transport provides the HTTP collaborator used for page and image fetches.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/photo-feed-client/pkg/feederr"
	"github.com/Sternrassler/photo-feed-client/pkg/logging"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for HTTP operations.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_http_requests_total",
		Help: "Total HTTP requests by host and status",
	}, []string{"host", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by host",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"host"})
)

// ErrNoResponse is wrapped when a Fetcher returns neither a response nor an error.
var ErrNoResponse = errors.New("fetcher returned no response")

// Response is a completed HTTP exchange.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Fetcher performs a GET for url.
//
// Implementations return a feederr error of class transport for network
// failures and of class http_status for any non-2xx status; the response is
// still returned in the latter case.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}

// Config holds the client configuration.
type Config struct {
	// UserAgent header sent with every request (REQUIRED).
	UserAgent string

	// Timeout bounds a single request including reading the body.
	Timeout time.Duration

	// Headers are added to every request (e.g. Accept-Version).
	Headers map[string]string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Headers: map[string]string{
			"Accept-Version": "v1",
		},
	}
}

// Client is a Fetcher backed by resty.
type Client struct {
	http   *resty.Client
	config Config
	logger zerolog.Logger
}

// New creates a new HTTP client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)
	for k, v := range cfg.Headers {
		httpClient.SetHeader(k, v)
	}

	return &Client{
		http:   httpClient,
		config: cfg,
		logger: logging.NewLogger("transport"),
	}, nil
}

// Fetch implements Fetcher. Credential query parameters never appear in logs
// or returned errors.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	host := hostOf(rawURL)
	safeURL := RedactURL(rawURL)

	startTime := time.Now()
	defer func() {
		httpRequestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().Str("url", safeURL).Msg("Executing request")

	resp, err := c.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		class := classifyError(ctx, nil, err)
		httpRequestsTotal.WithLabelValues(host, string(class)).Inc()

		if class == feederr.ClassCancelled {
			return nil, feederr.Cancelled(safeURL, ctx.Err())
		}
		err = feederr.Transport(safeURL, RedactError(err))
		c.logger.Warn().
			Err(err).
			Str("url", safeURL).
			Str("error_class", string(class)).
			Msg("HTTP request failed")
		return nil, err
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Header:     resp.Header(),
	}
	httpRequestsTotal.WithLabelValues(host, strconv.Itoa(out.StatusCode)).Inc()

	if class := classifyError(ctx, out, nil); class != "" {
		c.logger.Warn().
			Str("url", safeURL).
			Int("status_code", out.StatusCode).
			Str("error_class", string(class)).
			Msg("Request returned non-success status")
		return out, feederr.HTTPStatus(safeURL, out.StatusCode)
	}

	return out, nil
}

// SetTransport replaces the underlying round tripper (for testing).
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// classifyError categorizes a failed exchange. It returns "" for success.
func classifyError(ctx context.Context, resp *Response, err error) feederr.Class {
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
			return feederr.ClassCancelled
		}
		return feederr.ClassTransport
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return feederr.ClassHTTPStatus
	}
	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
