package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/photo-feed-client/pkg/dispatch"
	"github.com/Sternrassler/photo-feed-client/pkg/feederr"
	"github.com/Sternrassler/photo-feed-client/pkg/logging"
	"github.com/Sternrassler/photo-feed-client/pkg/transport"
	"github.com/rs/zerolog"
)

// State is the pagination state.
type State int

const (
	// StateIdle accepts RequestNextPage.
	StateIdle State = iota
	// StateFetching has exactly one page fetch in flight.
	StateFetching
	// StateExhausted has reached the last page; RequestNextPage is a no-op until Reset.
	StateExhausted
	// StateFailed saw the last fetch fail; RequestNextPage retries the same page.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PageEvent describes one page completion.
type PageEvent struct {
	// Page is the page number that was fetched.
	Page int

	// Items holds the items appended by this page, in document order.
	Items []Item

	// Skipped counts page objects dropped for missing urls.regular.
	Skipped int

	// Total is the item count after the page was applied.
	Total int

	// Err is set for PageFailed.
	Err error
}

// Observer receives page signals. Signals are delivered on the Source's queue.
type Observer interface {
	// PageReady is sent after a page's items were appended.
	PageReady(ev PageEvent)

	// PageFailed is sent once per failed fetch.
	PageFailed(ev PageEvent)

	// Exhausted is sent after the PageReady of the last page.
	Exhausted(ev PageEvent)
}

// ObserverFuncs adapts optional functions to the Observer interface.
type ObserverFuncs struct {
	OnPageReady  func(ev PageEvent)
	OnPageFailed func(ev PageEvent)
	OnExhausted  func(ev PageEvent)
}

// PageReady calls OnPageReady if set.
func (o ObserverFuncs) PageReady(ev PageEvent) {
	if o.OnPageReady != nil {
		o.OnPageReady(ev)
	}
}

// PageFailed calls OnPageFailed if set.
func (o ObserverFuncs) PageFailed(ev PageEvent) {
	if o.OnPageFailed != nil {
		o.OnPageFailed(ev)
	}
}

// Exhausted calls OnExhausted if set.
func (o ObserverFuncs) Exhausted(ev PageEvent) {
	if o.OnExhausted != nil {
		o.OnExhausted(ev)
	}
}

// Limiter gates page requests on the API quota. *ratelimit.Tracker implements it.
type Limiter interface {
	ShouldAllowRequest(ctx context.Context) (bool, error)
	UpdateFromHeaders(ctx context.Context, headers http.Header) error
}

// Option configures a Source.
type Option func(*Source)

// WithLimiter gates every page fetch on l.
func WithLimiter(l Limiter) Option {
	return func(s *Source) {
		s.limiter = l
	}
}

// WithObserver sets the initial observer.
func WithObserver(o Observer) Option {
	return func(s *Source) {
		s.SetObserver(o)
	}
}

// Source loads pages sequentially and owns the item list.
type Source struct {
	queue   *dispatch.Queue
	fetcher transport.Fetcher
	limiter Limiter
	config  Config

	observer Observer
	logger   zerolog.Logger

	state       State
	currentPage int
	items       []Item

	// generation is bumped on Reset; completions carrying an older value are dropped.
	generation uint64
	cancel     context.CancelFunc
}

// NewSource creates a Source in the Idle state at page 1.
func NewSource(q *dispatch.Queue, fetcher transport.Fetcher, cfg Config, opts ...Option) (*Source, error) {
	if q == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pagination config: %w", err)
	}

	s := &Source{
		queue:       q,
		fetcher:     fetcher,
		config:      cfg,
		observer:    ObserverFuncs{},
		logger:      logging.NewLogger("pagination"),
		state:       StateIdle,
		currentPage: 1,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// SetObserver replaces the observer. A nil observer discards signals.
func (s *Source) SetObserver(o Observer) {
	if o == nil {
		o = ObserverFuncs{}
	}
	s.observer = o
}

// RequestNextPage starts fetching the current page. It returns false when a
// fetch is already in flight or the last page has been reached.
func (s *Source) RequestNextPage() bool {
	if s.state == StateFetching {
		s.logger.Debug().Int("page", s.currentPage).Msg("Page already in flight")
		return false
	}
	if s.currentPage >= s.config.TotalPages {
		s.state = StateExhausted
		s.logger.Debug().Int("page", s.currentPage).Msg("No more pages")
		return false
	}

	page := s.currentPage
	pageURL, err := s.config.PageURL(page)
	if err != nil {
		// Validated in NewSource.
		s.fail(page, feederr.Parse(s.config.Endpoint, err))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	s.cancel = cancel
	s.state = StateFetching
	gen := s.generation

	s.logger.Debug().
		Int("page", page).
		Str("url", redact(pageURL)).
		Msg("Fetching page")

	go func() {
		defer cancel()
		start := time.Now()
		items, skipped, err := s.load(ctx, pageURL)
		elapsed := time.Since(start)

		s.queue.Post(func() {
			s.complete(gen, page, items, skipped, err, elapsed)
		})
	}()

	return true
}

// Reset cancels any in-flight fetch, clears the item list and returns to
// page 1. The cancelled fetch's completion is dropped.
func (s *Source) Reset() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	s.items = nil
	s.currentPage = 1
	s.state = StateIdle

	s.logger.Debug().Uint64("generation", s.generation).Msg("Pagination reset")
}

// Close cancels any in-flight fetch without delivering its completion.
func (s *Source) Close() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.state == StateFetching {
		s.state = StateIdle
	}
}

// State returns the current state.
func (s *Source) State() State {
	return s.state
}

// IsLoading reports whether a page fetch is in flight.
func (s *Source) IsLoading() bool {
	return s.state == StateFetching
}

// CurrentPage returns the next page to fetch.
func (s *Source) CurrentPage() int {
	return s.currentPage
}

// TotalPages returns the configured page bound.
func (s *Source) TotalPages() int {
	return s.config.TotalPages
}

// HasMore reports whether another page may be requested.
func (s *Source) HasMore() bool {
	return s.currentPage < s.config.TotalPages
}

// Len returns the number of loaded items.
func (s *Source) Len() int {
	return len(s.items)
}

// Item returns the item at index i.
func (s *Source) Item(i int) (Item, bool) {
	if i < 0 || i >= len(s.items) {
		return Item{}, false
	}
	return s.items[i], true
}

// Items returns a copy of the item list.
func (s *Source) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// load runs off the queue.
func (s *Source) load(ctx context.Context, pageURL string) ([]Item, int, error) {
	if s.limiter != nil {
		allowed, err := s.limiter.ShouldAllowRequest(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, 0, feederr.Cancelled(redact(pageURL), err)
			}
			return nil, 0, &feederr.Error{Class: feederr.ClassRateLimit, URL: redact(pageURL), Err: err}
		}
		if !allowed {
			return nil, 0, feederr.RateLimited(redact(pageURL))
		}
	}

	resp, err := s.fetcher.Fetch(ctx, pageURL)
	if resp != nil && s.limiter != nil {
		if lerr := s.limiter.UpdateFromHeaders(ctx, resp.Header); lerr != nil {
			s.logger.Warn().Err(lerr).Msg("Failed to update quota state")
		}
	}
	if err != nil {
		var fe *feederr.Error
		if !errors.As(err, &fe) {
			err = feederr.Transport(pageURL, err)
		}
		return nil, 0, transport.RedactError(err)
	}
	if resp == nil {
		return nil, 0, feederr.Transport(redact(pageURL), transport.ErrNoResponse)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, feederr.HTTPStatus(redact(pageURL), resp.StatusCode)
	}

	items, skipped, err := ParsePage(resp.Body)
	if err != nil {
		return nil, 0, feederr.Parse(redact(pageURL), err)
	}
	return items, skipped, nil
}

// complete runs on the queue.
func (s *Source) complete(gen uint64, page int, items []Item, skipped int, err error, elapsed time.Duration) {
	if gen != s.generation {
		s.logger.Debug().
			Int("page", page).
			Uint64("generation", gen).
			Msg("Dropping stale page completion")
		return
	}
	s.cancel = nil
	pageFetchDuration.Observe(elapsed.Seconds())

	if err != nil {
		s.fail(page, err)
		return
	}

	s.items = append(s.items, items...)
	s.currentPage++

	pageFetchesTotal.WithLabelValues("success").Inc()
	pageItemsTotal.Add(float64(len(items)))
	if skipped > 0 {
		pageItemsSkippedTotal.Add(float64(skipped))
		s.logger.Warn().
			Int("page", page).
			Int("skipped", skipped).
			Msg("Skipped page objects without image URL")
	}

	ev := PageEvent{Page: page, Items: items, Skipped: skipped, Total: len(s.items)}
	exhausted := s.currentPage >= s.config.TotalPages
	if exhausted {
		s.state = StateExhausted
	} else {
		s.state = StateIdle
	}

	s.logger.Info().
		Int("page", page).
		Int("items", len(items)).
		Int("total", len(s.items)).
		Dur("duration", elapsed).
		Msg("Page loaded")

	s.observer.PageReady(ev)
	if exhausted {
		s.logger.Info().Int("total", len(s.items)).Msg("Collection exhausted")
		s.observer.Exhausted(ev)
	}
}

func (s *Source) fail(page int, err error) {
	s.state = StateFailed
	pageFetchesTotal.WithLabelValues(string(feederr.ClassOf(err))).Inc()

	s.logger.Warn().
		Err(err).
		Int("page", page).
		Msg("Page fetch failed")

	s.observer.PageFailed(PageEvent{Page: page, Total: len(s.items), Err: err})
}
