// Package grid drives a scrollable grid of photos from a page source and an
// image coordinator.
//
// The Controller reacts to two trigger events from the view: the last item
// becoming visible (ItemWillDisplay) and a refresh request (Refresh). Page
// completions clear the loading flag at once; the full item list is handed to
// the View after a settle window with no further page completions.
//
// Visual slots are reused while scrolling. Every BindSlot bumps the slot's
// token, and an image completion renders only if the slot's token is still the
// one it was issued with.
//
// All methods must be called from tasks on the Controller's queue.
package grid

import (
	"fmt"
	"time"

	"github.com/Sternrassler/photo-feed-client/pkg/decode"
	"github.com/Sternrassler/photo-feed-client/pkg/dispatch"
	"github.com/Sternrassler/photo-feed-client/pkg/fetch"
	"github.com/Sternrassler/photo-feed-client/pkg/logging"
	"github.com/Sternrassler/photo-feed-client/pkg/pagination"
	"github.com/rs/zerolog"
)

// View is the render sink.
type View interface {
	// Reload replaces the displayed item list.
	Reload(items []pagination.Item)

	// RenderSlot draws img into slot, which is bound to the item at index.
	// A nil img draws the placeholder.
	RenderSlot(slot, index int, img *decode.Image)

	// ShowLoader toggles the loading affordance.
	ShowLoader(visible bool)
}

// Pager is the page source the controller drives. *pagination.Source implements it.
type Pager interface {
	RequestNextPage() bool
	Reset()
	HasMore() bool
	Len() int
	Item(i int) (pagination.Item, bool)
	Items() []pagination.Item
	SetObserver(o pagination.Observer)
}

// ImageLoader loads decoded images. *fetch.Coordinator implements it.
type ImageLoader interface {
	Request(key string, onComplete fetch.Callback)
}

// Config holds controller configuration.
type Config struct {
	// SettleWindow is the quiet period after the last page completion before
	// the item list is reloaded. Zero reloads on the next queue tick.
	SettleWindow time.Duration
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{SettleWindow: 250 * time.Millisecond}
}

type binding struct {
	index int
	token uint64
}

// Controller is the grid coordinator.
type Controller struct {
	pager  Pager
	images ImageLoader
	view   View
	logger zerolog.Logger

	loading bool
	reload  *dispatch.Debouncer
	slots   map[int]*binding
}

// New creates a controller and registers it as the pager's observer.
func New(q *dispatch.Queue, pager Pager, images ImageLoader, view View, cfg Config) (*Controller, error) {
	if q == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if pager == nil {
		return nil, fmt.Errorf("pager is required")
	}
	if images == nil {
		return nil, fmt.Errorf("image loader is required")
	}
	if view == nil {
		return nil, fmt.Errorf("view is required")
	}
	if cfg.SettleWindow < 0 {
		return nil, fmt.Errorf("settle window must be >= 0 (got %s)", cfg.SettleWindow)
	}

	c := &Controller{
		pager:  pager,
		images: images,
		view:   view,
		logger: logging.NewLogger("grid"),
		slots:  make(map[int]*binding),
	}
	c.reload = dispatch.NewDebouncer(q, cfg.SettleWindow, c.reloadItems)
	pager.SetObserver(c)

	return c, nil
}

// Start performs the initial load.
func (c *Controller) Start() {
	c.Refresh()
}

// Refresh discards all items and loads the first page again. Outstanding
// image completions for every slot are invalidated.
func (c *Controller) Refresh() {
	c.logger.Info().Msg("Refreshing grid")

	c.pager.Reset()
	c.reload.Cancel()
	for _, b := range c.slots {
		b.token++
		b.index = -1
	}
	c.setLoading(false)
	c.view.Reload(nil)

	c.requestPage()
}

// ItemWillDisplay handles the view showing the item at index. Reaching the
// last item loads the next page.
func (c *Controller) ItemWillDisplay(index int) {
	n := c.pager.Len()
	if n > 0 && index != n-1 {
		return
	}
	if c.loading || !c.pager.HasMore() {
		return
	}
	c.requestPage()
}

// BindSlot assigns slot to the item at index and starts loading its image.
// The slot shows the placeholder until the image arrives.
func (c *Controller) BindSlot(slot, index int) {
	b, ok := c.slots[slot]
	if !ok {
		b = &binding{}
		c.slots[slot] = b
	}
	b.token++
	b.index = index
	token := b.token

	c.view.RenderSlot(slot, index, nil)

	item, ok := c.pager.Item(index)
	if !ok {
		return
	}

	c.images.Request(item.ImageURL, func(img *decode.Image, err error) {
		if b.token != token {
			c.logger.Debug().
				Int("slot", slot).
				Int("index", index).
				Msg("Dropping image for reassigned slot")
			return
		}
		if err != nil {
			c.view.RenderSlot(slot, index, nil)
			return
		}
		c.view.RenderSlot(slot, index, img)
	})
}

// UnbindSlot detaches slot from its item. Pending completions for it are dropped.
func (c *Controller) UnbindSlot(slot int) {
	if b, ok := c.slots[slot]; ok {
		b.token++
		b.index = -1
	}
}

// SlotIndex returns the item index bound to slot.
func (c *Controller) SlotIndex(slot int) (int, bool) {
	b, ok := c.slots[slot]
	if !ok || b.index < 0 {
		return 0, false
	}
	return b.index, true
}

// IsLoading reports whether the loader is shown.
func (c *Controller) IsLoading() bool {
	return c.loading
}

// Items returns the loaded items.
func (c *Controller) Items() []pagination.Item {
	return c.pager.Items()
}

// ReloadPending reports whether a settle-window reload is scheduled.
func (c *Controller) ReloadPending() bool {
	return c.reload.Pending()
}

// Close drops a pending reload.
func (c *Controller) Close() {
	c.reload.Cancel()
}

// PageReady implements pagination.Observer.
func (c *Controller) PageReady(ev pagination.PageEvent) {
	c.setLoading(false)
	c.reload.Trigger()
}

// PageFailed implements pagination.Observer.
func (c *Controller) PageFailed(ev pagination.PageEvent) {
	c.logger.Warn().
		Err(ev.Err).
		Int("page", ev.Page).
		Msg("Page failed, waiting for next trigger")
	c.setLoading(false)
	c.reload.Trigger()
}

// Exhausted implements pagination.Observer. The final item list is shown
// without waiting for the settle window since no further page can follow.
func (c *Controller) Exhausted(ev pagination.PageEvent) {
	c.logger.Info().Int("items", ev.Total).Msg("All pages loaded")
	c.reload.Flush()
}

func (c *Controller) requestPage() {
	if c.pager.RequestNextPage() {
		c.setLoading(true)
	}
}

func (c *Controller) setLoading(loading bool) {
	if c.loading == loading {
		return
	}
	c.loading = loading
	c.view.ShowLoader(loading)
}

func (c *Controller) reloadItems() {
	items := c.pager.Items()
	c.logger.Debug().Int("items", len(items)).Msg("Reloading grid")
	c.view.Reload(items)
}
