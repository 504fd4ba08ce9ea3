// Package imagecache provides the bounded in-memory store of decoded images.
//
// The cache maps an image URL to its decoded image and evicts the least
// recently used entry once Capacity is exceeded. Get counts as a use; Put of an
// existing key refreshes it.
//
// # Basic Usage
//
//	c, err := imagecache.New(imagecache.Config{Capacity: 200})
//	if err != nil {
//		return err
//	}
//
//	c.Put("https://images.example.com/a.jpg", img)
//	if img, ok := c.Get("https://images.example.com/a.jpg"); ok {
//		// render img
//	}
//
// # Metrics
//
// The cache exports Prometheus metrics:
//
//   - feed_image_cache_hits_total - Cache hits
//   - feed_image_cache_misses_total - Cache misses
//   - feed_image_cache_evictions_total - Entries evicted for capacity
//   - feed_image_cache_entries - Resident entries
//   - feed_image_cache_bytes - Encoded bytes of resident entries
//
// The cache never blocks and performs no I/O.
package imagecache
