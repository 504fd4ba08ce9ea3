package imagecache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/photo-feed-client/pkg/decode"
	"github.com/Sternrassler/photo-feed-client/pkg/logging"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultCapacity is the number of decoded images kept when none is configured.
const DefaultCapacity = 200

// Config holds image cache configuration.
type Config struct {
	// Capacity is the maximum number of resident entries. Must be > 0.
	Capacity int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity}
}

// Entry is one resident cache entry. Recency is tracked by the LRU list.
type Entry struct {
	Image    *decode.Image
	StoredAt time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
}

// Cache is a bounded LRU of decoded images keyed by URL.
type Cache struct {
	lru      *lru.Cache[string, Entry]
	capacity int
	logger   zerolog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	bytes     atomic.Int64
}

// New creates a cache with the given configuration.
func New(cfg Config) (*Cache, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be > 0 (got %d)", cfg.Capacity)
	}

	c := &Cache{
		capacity: cfg.Capacity,
		logger:   logging.NewLogger("image-cache"),
	}

	store, err := lru.NewWithEvict[string, Entry](cfg.Capacity, c.onRemoved)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.lru = store

	return c, nil
}

// Get returns the decoded image for key and marks it most recently used.
func (c *Cache) Get(key string) (*decode.Image, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		CacheMisses.Inc()
		return nil, false
	}

	c.hits.Add(1)
	CacheHits.Inc()
	return entry.Image, true
}

// Contains reports whether key is resident without touching its recency.
func (c *Cache) Contains(key string) bool {
	return c.lru.Contains(key)
}

// Put stores value under key, evicting the least recently used entry when the
// cache is full. A nil value is ignored.
func (c *Cache) Put(key string, value *decode.Image) {
	if value == nil {
		return
	}

	// Replacing an entry removes the old one through onRemoved first.
	if c.lru.Contains(key) {
		c.lru.Remove(key)
	}

	entry := Entry{Image: value, StoredAt: time.Now()}
	c.bytes.Add(int64(value.Bytes))
	CacheBytes.Add(float64(value.Bytes))

	if evicted := c.lru.Add(key, entry); evicted {
		c.evictions.Add(1)
		CacheEvictions.Inc()
		c.logger.Debug().
			Str("url", key).
			Int("capacity", c.capacity).
			Msg("Evicted least recently used image")
	}

	CacheEntries.Set(float64(c.lru.Len()))
}

// Purge drops all entries.
func (c *Cache) Purge() {
	c.lru.Purge()
	CacheEntries.Set(0)
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Capacity returns the configured maximum number of entries.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.lru.Len(),
		Bytes:     c.bytes.Load(),
	}
}

// onRemoved runs for every entry leaving the LRU, whatever the reason.
func (c *Cache) onRemoved(_ string, entry Entry) {
	if entry.Image == nil {
		return
	}
	c.bytes.Add(-int64(entry.Image.Bytes))
	CacheBytes.Sub(float64(entry.Image.Bytes))
}
