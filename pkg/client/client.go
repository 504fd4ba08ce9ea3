// Package client assembles the photo feed engine: one dispatch queue, the HTTP
// transport, the API quota tracker, the image cache, the image fetch
// coordinator, the page source and the grid controller.
package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Sternrassler/photo-feed-client/pkg/config"
	"github.com/Sternrassler/photo-feed-client/pkg/dispatch"
	"github.com/Sternrassler/photo-feed-client/pkg/fetch"
	"github.com/Sternrassler/photo-feed-client/pkg/grid"
	"github.com/Sternrassler/photo-feed-client/pkg/imagecache"
	"github.com/Sternrassler/photo-feed-client/pkg/logging"
	"github.com/Sternrassler/photo-feed-client/pkg/pagination"
	"github.com/Sternrassler/photo-feed-client/pkg/ratelimit"
	"github.com/Sternrassler/photo-feed-client/pkg/transport"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Client is the assembled photo feed engine.
type Client struct {
	queue  *dispatch.Queue
	http   *transport.Client
	quota  *ratelimit.Tracker
	cache  *imagecache.Cache
	images *fetch.Coordinator
	pages  *pagination.Source
	grid   *grid.Controller
	config Config
	logger zerolog.Logger
}

// Config holds the engine configuration.
type Config struct {
	// Redis stores quota state when set, so several processes sharing one
	// access key see the same remaining quota. Optional.
	Redis *redis.Client

	// QuotaEnabled gates page fetches on the API quota.
	QuotaEnabled bool

	Pagination pagination.Config
	Transport  transport.Config
	Cache      imagecache.Config
	Fetch      fetch.Config
	Grid       grid.Config
	Quota      ratelimit.Config
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(accessKey, userAgent string) Config {
	return Config{
		QuotaEnabled: true,
		Pagination:   pagination.DefaultConfig(accessKey),
		Transport:    transport.DefaultConfig(userAgent),
		Cache:        imagecache.DefaultConfig(),
		Fetch:        fetch.DefaultConfig(),
		Grid:         grid.DefaultConfig(),
		Quota:        ratelimit.DefaultConfig(),
	}
}

// FromAppConfig derives the engine configuration from loaded application
// configuration. rdb may be nil.
func FromAppConfig(cfg *config.Config, rdb *redis.Client) Config {
	return Config{
		Redis:        rdb,
		QuotaEnabled: cfg.Quota.Enabled,
		Pagination:   cfg.PaginationConfig(),
		Transport:    cfg.TransportConfig(),
		Cache:        cfg.ImageCacheConfig(),
		Fetch:        cfg.FetchConfig(),
		Grid:         cfg.ControllerConfig(),
		Quota:        cfg.TrackerConfig(),
	}
}

// New creates a new engine rendering into view. The engine is idle until Run
// is called.
func New(cfg Config, view grid.View) (*Client, error) {
	if view == nil {
		return nil, fmt.Errorf("view is required")
	}

	logger := logging.NewLogger("feed-client")
	queue := dispatch.NewQueue()

	httpClient, err := transport.New(cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	imageCache, err := imagecache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}

	images, err := fetch.New(queue, imageCache, httpClient, nil, cfg.Fetch)
	if err != nil {
		return nil, fmt.Errorf("create fetch coordinator: %w", err)
	}

	var opts []pagination.Option
	var quota *ratelimit.Tracker
	if cfg.QuotaEnabled {
		var store ratelimit.Store = ratelimit.NewMemoryStore()
		if cfg.Redis != nil {
			store = ratelimit.NewRedisStore(cfg.Redis)
		}
		quota = ratelimit.NewTracker(store, cfg.Quota, logging.NewLogger("ratelimit"))
		opts = append(opts, pagination.WithLimiter(quota))
	}

	pages, err := pagination.NewSource(queue, httpClient, cfg.Pagination, opts...)
	if err != nil {
		return nil, fmt.Errorf("create page source: %w", err)
	}

	controller, err := grid.New(queue, pages, images, view, cfg.Grid)
	if err != nil {
		return nil, fmt.Errorf("create grid controller: %w", err)
	}

	logger.Info().
		Int("cache_capacity", cfg.Cache.Capacity).
		Int("total_pages", cfg.Pagination.TotalPages).
		Bool("quota", cfg.QuotaEnabled).
		Bool("redis", cfg.Redis != nil).
		Msg("Feed client created")

	return &Client{
		queue:  queue,
		http:   httpClient,
		quota:  quota,
		cache:  imageCache,
		images: images,
		pages:  pages,
		grid:   controller,
		config: cfg,
		logger: logger,
	}, nil
}

// Run executes the engine until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	return c.queue.Run(ctx)
}

// Do runs fn with the grid controller on the engine queue. It reports false
// if the engine has stopped.
func (c *Client) Do(fn func(g *grid.Controller)) bool {
	return c.queue.Post(func() { fn(c.grid) })
}

// Sync is like Do but waits for fn to finish. It must not be called from
// the engine queue.
func (c *Client) Sync(fn func(g *grid.Controller)) bool {
	return c.queue.Sync(func() { fn(c.grid) })
}

// Start performs the initial page load.
func (c *Client) Start() bool {
	return c.Do((*grid.Controller).Start)
}

// Refresh reloads from the first page.
func (c *Client) Refresh() bool {
	return c.Do((*grid.Controller).Refresh)
}

// ItemWillDisplay reports that the item at index is about to be shown.
func (c *Client) ItemWillDisplay(index int) bool {
	return c.Do(func(g *grid.Controller) { g.ItemWillDisplay(index) })
}

// BindSlot assigns a visual slot to the item at index.
func (c *Client) BindSlot(slot, index int) bool {
	return c.Do(func(g *grid.Controller) { g.BindSlot(slot, index) })
}

// QuotaState returns the last observed API quota, or nil when quota tracking
// is disabled.
func (c *Client) QuotaState(ctx context.Context) (*ratelimit.QuotaState, error) {
	if c.quota == nil {
		return nil, nil
	}
	return c.quota.GetState(ctx)
}

// CacheStats returns image cache counters.
func (c *Client) CacheStats() imagecache.Stats {
	return c.cache.Stats()
}

// Queue returns the engine queue.
func (c *Client) Queue() *dispatch.Queue {
	return c.queue
}

// Close cancels in-flight work. Pending page and image completions are dropped.
func (c *Client) Close() error {
	c.images.Close()
	c.queue.Post(func() {
		c.grid.Close()
		c.pages.Close()
	})
	c.logger.Debug().Msg("Feed client closed")
	return nil
}

// SetTransport replaces the HTTP round tripper (for testing).
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}
