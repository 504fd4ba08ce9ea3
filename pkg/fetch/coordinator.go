// Package fetch coordinates image loads so each URL is fetched at most once at a time.
//
// A Coordinator answers from the image cache when it can. Otherwise the first
// request for a URL starts a fetch and decode in its own goroutine, and any
// request for the same URL arriving before it resolves joins as another
// subscriber. When the load resolves, the in-flight entry is removed, a
// decoded image is stored in the cache, and every subscriber is called in
// subscription order with the same result.
//
// Request must be called from a task on the Coordinator's queue. Callbacks
// always run on that queue, including cache hits, which are posted rather than
// called inline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/photo-feed-client/pkg/decode"
	"github.com/Sternrassler/photo-feed-client/pkg/dispatch"
	"github.com/Sternrassler/photo-feed-client/pkg/feederr"
	"github.com/Sternrassler/photo-feed-client/pkg/imagecache"
	"github.com/Sternrassler/photo-feed-client/pkg/logging"
	"github.com/Sternrassler/photo-feed-client/pkg/transport"
	"github.com/rs/zerolog"
)

var errNoImage = errors.New("decoder returned no image")

// Callback receives the outcome of a Request. Exactly one of img and err is non-nil.
type Callback func(img *decode.Image, err error)

// Config holds coordinator configuration.
type Config struct {
	// Timeout bounds one fetch including decode.
	Timeout time.Duration
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

type inFlight struct {
	subscribers []Callback
	started     time.Time
}

// Coordinator deduplicates concurrent image fetches and fills the cache.
type Coordinator struct {
	queue   *dispatch.Queue
	cache   *imagecache.Cache
	fetcher transport.Fetcher
	decoder decode.Decoder
	config  Config
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	pending map[string]*inFlight
}

// New creates a Coordinator. A nil decoder uses decode.StdDecoder.
func New(q *dispatch.Queue, cache *imagecache.Cache, fetcher transport.Fetcher, decoder decode.Decoder, cfg Config) (*Coordinator, error) {
	if q == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if decoder == nil {
		decoder = decode.StdDecoder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		queue:   q,
		cache:   cache,
		fetcher: fetcher,
		decoder: decoder,
		config:  cfg,
		logger:  logging.NewLogger("fetch"),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*inFlight),
	}, nil
}

// Request loads the image at key and calls onComplete on the queue.
func (c *Coordinator) Request(key string, onComplete Callback) {
	if onComplete == nil {
		onComplete = func(*decode.Image, error) {}
	}

	if img, ok := c.cache.Get(key); ok {
		requestsTotal.WithLabelValues("cache_hit").Inc()
		c.logger.Debug().Str("url", key).Msg("Cache hit")
		c.queue.Post(func() { onComplete(img, nil) })
		return
	}

	if req, ok := c.pending[key]; ok {
		req.subscribers = append(req.subscribers, onComplete)
		requestsTotal.WithLabelValues("joined").Inc()
		c.logger.Debug().
			Str("url", key).
			Int("subscribers", len(req.subscribers)).
			Msg("Joined in-flight fetch")
		return
	}

	c.pending[key] = &inFlight{
		subscribers: []Callback{onComplete},
		started:     time.Now(),
	}
	requestsTotal.WithLabelValues("fetched").Inc()
	inFlightGauge.Inc()

	go c.load(key)
}

// InFlight returns the number of URLs currently being fetched.
func (c *Coordinator) InFlight() int {
	return len(c.pending)
}

// Subscribers returns the number of callbacks waiting on key.
func (c *Coordinator) Subscribers(key string) int {
	if req, ok := c.pending[key]; ok {
		return len(req.subscribers)
	}
	return 0
}

// Close cancels all in-flight fetches. Their subscribers receive cancelled errors.
func (c *Coordinator) Close() {
	c.cancel()
}

// load runs off the queue.
func (c *Coordinator) load(key string) {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.Timeout)
	defer cancel()

	img, err := c.fetchAndDecode(ctx, key)
	if !c.queue.Post(func() { c.resolve(key, img, err) }) {
		inFlightGauge.Dec()
	}
}

func (c *Coordinator) fetchAndDecode(ctx context.Context, key string) (*decode.Image, error) {
	resp, err := c.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, feederr.Transport(key, transport.ErrNoResponse)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, feederr.HTTPStatus(key, resp.StatusCode)
	}
	img, err := c.decoder.Decode(key, resp.Body)
	if err == nil && img == nil {
		err = feederr.Decode(key, errNoImage)
	}
	return img, err
}

// resolve runs on the queue.
func (c *Coordinator) resolve(key string, img *decode.Image, err error) {
	req, ok := c.pending[key]
	if !ok {
		return
	}
	delete(c.pending, key)
	inFlightGauge.Dec()

	elapsed := time.Since(req.started)
	fetchDuration.Observe(elapsed.Seconds())

	if err != nil {
		fetchFailuresTotal.WithLabelValues(string(feederr.ClassOf(err))).Inc()
		c.logger.Warn().
			Err(err).
			Str("url", key).
			Int("subscribers", len(req.subscribers)).
			Msg("Image fetch failed")
		img = nil
	} else {
		c.cache.Put(key, img)
		c.logger.Debug().
			Str("url", key).
			Int("bytes", img.Bytes).
			Dur("duration", elapsed).
			Msg("Image fetched")
	}

	for _, cb := range req.subscribers {
		cb(img, err)
	}
}
