package pagination

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/photo-feed-client/internal/testutil"
	"github.com/Sternrassler/photo-feed-client/pkg/dispatch"
	"github.com/Sternrassler/photo-feed-client/pkg/feederr"
	"github.com/Sternrassler/photo-feed-client/pkg/transport"
)

type signal struct {
	kind string
	ev   PageEvent
}

// recorder collects observer signals.
type recorder struct {
	signals chan signal
}

func newRecorder() *recorder {
	return &recorder{signals: make(chan signal, 32)}
}

func (r *recorder) PageReady(ev PageEvent)  { r.signals <- signal{"ready", ev} }
func (r *recorder) PageFailed(ev PageEvent) { r.signals <- signal{"failed", ev} }
func (r *recorder) Exhausted(ev PageEvent)  { r.signals <- signal{"exhausted", ev} }

func (r *recorder) next(t *testing.T) signal {
	t.Helper()
	select {
	case s := <-r.signals:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for page signal")
		return signal{}
	}
}

func (r *recorder) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case s := <-r.signals:
		t.Fatalf("Unexpected %s signal for page %d", s.kind, s.ev.Page)
	case <-time.After(wait):
	}
}

func newTestSource(t *testing.T, q *dispatch.Queue, api *testutil.MockAPI, totalPages int, opts ...Option) (*Source, *recorder) {
	t.Helper()

	client, err := transport.New(transport.DefaultConfig("PhotoFeedTest/1.0"))
	if err != nil {
		t.Fatalf("transport.New() error = %v", err)
	}

	cfg := DefaultConfig("test-key")
	cfg.Endpoint = api.PhotosURL()
	cfg.TotalPages = totalPages
	cfg.Timeout = 2 * time.Second

	rec := newRecorder()
	src, err := NewSource(q, client, cfg, append([]Option{WithObserver(rec)}, opts...)...)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	return src, rec
}

func TestNewSource_Validation(t *testing.T) {
	q := dispatch.NewQueue()
	fetcher := transport.FetcherFunc(func(ctx context.Context, url string) (*transport.Response, error) {
		return nil, nil
	})

	if _, err := NewSource(nil, fetcher, DefaultConfig("k")); err == nil {
		t.Error("Expected error for nil queue")
	}
	if _, err := NewSource(q, nil, DefaultConfig("k")); err == nil {
		t.Error("Expected error for nil fetcher")
	}
	if _, err := NewSource(q, fetcher, DefaultConfig("")); err == nil {
		t.Error("Expected error for missing access key")
	}
}

func TestSource_FirstPage(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetPage(1, testutil.PhotosJSON("https://img.example/a", "https://img.example/b"))

	src, rec := newTestSource(t, q, api, 10)

	var started bool
	q.Sync(func() { started = src.RequestNextPage() })
	if !started {
		t.Fatal("RequestNextPage() = false, want true")
	}

	s := rec.next(t)
	if s.kind != "ready" {
		t.Fatalf("signal = %s, want ready", s.kind)
	}
	if s.ev.Page != 1 || len(s.ev.Items) != 2 || s.ev.Total != 2 {
		t.Errorf("event = page %d, %d items, total %d; want page 1, 2 items, total 2", s.ev.Page, len(s.ev.Items), s.ev.Total)
	}

	q.Sync(func() {
		if src.Len() != 2 {
			t.Errorf("Len() = %d, want 2", src.Len())
		}
		if src.CurrentPage() != 2 {
			t.Errorf("CurrentPage() = %d, want 2", src.CurrentPage())
		}
		if src.State() != StateIdle {
			t.Errorf("State() = %s, want idle", src.State())
		}
		item, ok := src.Item(1)
		if !ok || item.ImageURL != "https://img.example/b" {
			t.Errorf("Item(1) = %+v, %v", item, ok)
		}
	})

	if got := api.LastQuery("page"); got != "1" {
		t.Errorf("page query = %q, want 1", got)
	}
	if got := api.LastQuery("client_id"); got != "test-key" {
		t.Errorf("client_id query = %q, want test-key", got)
	}
}

func TestSource_PagesAppendInOrder(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetPage(1, testutil.PhotosJSON("https://img.example/1"))
	api.SetPage(2, testutil.PhotosJSON("https://img.example/2", "https://img.example/3"))

	src, rec := newTestSource(t, q, api, 10)

	q.Post(func() { src.RequestNextPage() })
	rec.next(t)
	q.Post(func() { src.RequestNextPage() })
	rec.next(t)

	q.Sync(func() {
		items := src.Items()
		want := []string{"https://img.example/1", "https://img.example/2", "https://img.example/3"}
		if len(items) != len(want) {
			t.Fatalf("len(items) = %d, want %d", len(items), len(want))
		}
		for i := range want {
			if items[i].ImageURL != want[i] {
				t.Errorf("items[%d] = %q, want %q", i, items[i].ImageURL, want[i])
			}
		}
		if src.CurrentPage() != 3 {
			t.Errorf("CurrentPage() = %d, want 3", src.CurrentPage())
		}
	})
}

func TestSource_ServerErrorFails(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse(testutil.PhotosPath, testutil.NewServerErrorResponse())

	src, rec := newTestSource(t, q, api, 10)
	q.Post(func() { src.RequestNextPage() })

	s := rec.next(t)
	if s.kind != "failed" {
		t.Fatalf("signal = %s, want failed", s.kind)
	}
	if !feederr.IsClass(s.ev.Err, feederr.ClassHTTPStatus) {
		t.Errorf("error class = %s, want http_status", feederr.ClassOf(s.ev.Err))
	}
	rec.expectNone(t, 50*time.Millisecond)

	q.Sync(func() {
		if src.State() != StateFailed {
			t.Errorf("State() = %s, want failed", src.State())
		}
		if src.Len() != 0 {
			t.Errorf("Len() = %d, want 0", src.Len())
		}
		if src.CurrentPage() != 1 {
			t.Errorf("CurrentPage() = %d, want 1", src.CurrentPage())
		}
	})
}

func TestSource_FailureNeverLogsAccessKey(t *testing.T) {
	logs := testutil.CaptureLogs(t)

	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse(testutil.PhotosPath, testutil.NewServerErrorResponse())

	src, rec := newTestSource(t, q, api, 10)
	q.Post(func() { src.RequestNextPage() })

	s := rec.next(t)
	if s.kind != "failed" {
		t.Fatalf("signal = %s, want failed", s.kind)
	}
	if strings.Contains(s.ev.Err.Error(), "test-key") {
		t.Errorf("event error leaks access key: %v", s.ev.Err)
	}
	if !strings.Contains(s.ev.Err.Error(), "client_id=REDACTED") {
		t.Errorf("event error = %v, want redacted URL", s.ev.Err)
	}

	if !logs.Contains("Page fetch failed") {
		t.Fatal("expected the failure to be logged")
	}
	if logs.Contains("test-key") {
		t.Errorf("logs leak access key:\n%s", logs.String())
	}
}

func TestSource_CustomFetcherErrors(t *testing.T) {
	tests := []struct {
		name    string
		fetcher transport.FetcherFunc
		class   feederr.Class
	}{
		{
			name: "no response and no error",
			fetcher: func(ctx context.Context, url string) (*transport.Response, error) {
				return nil, nil
			},
			class: feederr.ClassTransport,
		},
		{
			name: "unclassified error",
			fetcher: func(ctx context.Context, url string) (*transport.Response, error) {
				return nil, errors.New("socket closed")
			},
			class: feederr.ClassTransport,
		},
		{
			name: "feed error with raw url",
			fetcher: func(ctx context.Context, url string) (*transport.Response, error) {
				return nil, feederr.HTTPStatus(url, http.StatusBadGateway)
			},
			class: feederr.ClassHTTPStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := testutil.StartQueue(t)
			cfg := DefaultConfig("test-key")
			cfg.Endpoint = "https://api.example.com/photos"
			cfg.Timeout = 2 * time.Second

			rec := newRecorder()
			src, err := NewSource(q, tt.fetcher, cfg, WithObserver(rec))
			if err != nil {
				t.Fatalf("NewSource() error = %v", err)
			}
			q.Post(func() { src.RequestNextPage() })

			s := rec.next(t)
			if s.kind != "failed" {
				t.Fatalf("signal = %s, want failed", s.kind)
			}
			if !feederr.IsClass(s.ev.Err, tt.class) {
				t.Errorf("error = %v, want class %s", s.ev.Err, tt.class)
			}
			if strings.Contains(s.ev.Err.Error(), "test-key") {
				t.Errorf("event error leaks access key: %v", s.ev.Err)
			}
		})
	}
}

func TestSource_RetryAfterFailure(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse(testutil.PhotosPath, testutil.NewServerErrorResponse())

	src, rec := newTestSource(t, q, api, 10)
	q.Post(func() { src.RequestNextPage() })
	if s := rec.next(t); s.kind != "failed" {
		t.Fatalf("signal = %s, want failed", s.kind)
	}

	api.SetHandler(testutil.PhotosPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write(testutil.PhotosJSON("https://img.example/1"))
	})
	q.Post(func() { src.RequestNextPage() })

	s := rec.next(t)
	if s.kind != "ready" || s.ev.Page != 1 {
		t.Fatalf("signal = %s page %d, want ready page 1", s.kind, s.ev.Page)
	}
}

func TestSource_InvalidDocumentFails(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetPage(1, []byte(`{"errors":["bad"]}`))

	src, rec := newTestSource(t, q, api, 10)
	q.Post(func() { src.RequestNextPage() })

	s := rec.next(t)
	if s.kind != "failed" {
		t.Fatalf("signal = %s, want failed", s.kind)
	}
	if !feederr.IsClass(s.ev.Err, feederr.ClassParse) {
		t.Errorf("error class = %s, want parse", feederr.ClassOf(s.ev.Err))
	}
}

func TestSource_Exhausted(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetPage(1, testutil.PhotosJSON("https://img.example/1"))

	// With two total pages only page 1 is ever fetched.
	src, rec := newTestSource(t, q, api, 2)
	q.Post(func() { src.RequestNextPage() })

	if s := rec.next(t); s.kind != "ready" {
		t.Fatalf("signal = %s, want ready", s.kind)
	}
	if s := rec.next(t); s.kind != "exhausted" {
		t.Fatalf("signal = %s, want exhausted", s.kind)
	}

	var started bool
	q.Sync(func() {
		started = src.RequestNextPage()
		if src.State() != StateExhausted {
			t.Errorf("State() = %s, want exhausted", src.State())
		}
	})
	if started {
		t.Error("RequestNextPage() after exhaustion = true, want false")
	}
	rec.expectNone(t, 50*time.Millisecond)

	if got := api.GetPathCount(testutil.PhotosPath); got != 1 {
		t.Errorf("listing requests = %d, want 1", got)
	}
}

func TestSource_SinglePageNeverFetches(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()

	src, rec := newTestSource(t, q, api, 1)

	var started bool
	q.Sync(func() { started = src.RequestNextPage() })
	if started {
		t.Error("RequestNextPage() = true, want false")
	}
	rec.expectNone(t, 50*time.Millisecond)
	if got := api.GetRequestCount(); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
}

func TestSource_OneFetchInFlight(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetPage(1, testutil.PhotosJSON("https://img.example/1"))
	release := api.Block(testutil.PhotosPath)

	src, rec := newTestSource(t, q, api, 10)

	var first, second, third bool
	q.Sync(func() {
		first = src.RequestNextPage()
		second = src.RequestNextPage()
		third = src.RequestNextPage()
		if !src.IsLoading() {
			t.Error("IsLoading() = false while a page is in flight")
		}
	})
	if !first || second || third {
		t.Errorf("RequestNextPage() results = %v %v %v, want true false false", first, second, third)
	}

	release()
	if s := rec.next(t); s.kind != "ready" {
		t.Fatalf("signal = %s, want ready", s.kind)
	}
	rec.expectNone(t, 50*time.Millisecond)

	if got := api.GetPathCount(testutil.PhotosPath); got != 1 {
		t.Errorf("listing requests = %d, want 1", got)
	}
}

func TestSource_ResetDropsInFlightPage(t *testing.T) {
	q := testutil.StartQueue(t)

	var calls atomic.Int32
	entered := make(chan struct{})
	gate := make(chan struct{})
	fetcher := transport.FetcherFunc(func(ctx context.Context, url string) (*transport.Response, error) {
		if calls.Add(1) == 1 {
			// First fetch outlives the reset and still reports success.
			close(entered)
			<-gate
		}
		return &transport.Response{
			StatusCode: http.StatusOK,
			Body:       testutil.PhotosJSON("https://img.example/fresh"),
		}, nil
	})

	cfg := DefaultConfig("test-key")
	rec := newRecorder()
	src, err := NewSource(q, fetcher, cfg, WithObserver(rec))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	q.Sync(func() { src.RequestNextPage() })
	<-entered
	q.Sync(func() {
		src.Reset()
		if src.State() != StateIdle || src.CurrentPage() != 1 || src.Len() != 0 {
			t.Errorf("after Reset: state %s, page %d, len %d", src.State(), src.CurrentPage(), src.Len())
		}
		src.RequestNextPage()
	})

	s := rec.next(t)
	if s.kind != "ready" || s.ev.Page != 1 {
		t.Fatalf("signal = %s page %d, want ready page 1", s.kind, s.ev.Page)
	}

	close(gate)
	rec.expectNone(t, 100*time.Millisecond)

	q.Sync(func() {
		if src.Len() != 1 {
			t.Errorf("Len() = %d, want 1 (stale page must be dropped)", src.Len())
		}
	})
}

func TestSource_ResetClearsExhausted(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetPage(1, testutil.PhotosJSON("https://img.example/1"))

	src, rec := newTestSource(t, q, api, 2)
	q.Post(func() { src.RequestNextPage() })
	rec.next(t)
	rec.next(t)

	var started bool
	q.Sync(func() {
		src.Reset()
		started = src.RequestNextPage()
	})
	if !started {
		t.Fatal("RequestNextPage() after Reset = false, want true")
	}
	if s := rec.next(t); s.kind != "ready" || s.ev.Page != 1 || s.ev.Total != 1 {
		t.Errorf("signal = %s page %d total %d, want ready page 1 total 1", s.kind, s.ev.Page, s.ev.Total)
	}
}

type stubLimiter struct {
	allow   bool
	updates atomic.Int32
}

func (l *stubLimiter) ShouldAllowRequest(ctx context.Context) (bool, error) {
	return l.allow, nil
}

func (l *stubLimiter) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	l.updates.Add(1)
	return nil
}

func TestSource_LimiterBlocks(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()

	limiter := &stubLimiter{allow: false}
	src, rec := newTestSource(t, q, api, 10, WithLimiter(limiter))
	q.Post(func() { src.RequestNextPage() })

	s := rec.next(t)
	if s.kind != "failed" {
		t.Fatalf("signal = %s, want failed", s.kind)
	}
	if !feederr.IsClass(s.ev.Err, feederr.ClassRateLimit) {
		t.Errorf("error class = %s, want rate_limit", feederr.ClassOf(s.ev.Err))
	}
	if got := api.GetRequestCount(); got != 0 {
		t.Errorf("requests = %d, want 0", got)
	}
}

func TestSource_LimiterSeesHeaders(t *testing.T) {
	q := testutil.StartQueue(t)
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetPage(1, testutil.PhotosJSON("https://img.example/1"))

	limiter := &stubLimiter{allow: true}
	src, rec := newTestSource(t, q, api, 10, WithLimiter(limiter))
	q.Post(func() { src.RequestNextPage() })

	if s := rec.next(t); s.kind != "ready" {
		t.Fatalf("signal = %s, want ready", s.kind)
	}
	if got := limiter.updates.Load(); got != 1 {
		t.Errorf("UpdateFromHeaders calls = %d, want 1", got)
	}
}
