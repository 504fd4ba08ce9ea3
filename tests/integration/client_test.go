//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/photo-feed-client/internal/testutil"
	"github.com/Sternrassler/photo-feed-client/pkg/client"
	"github.com/Sternrassler/photo-feed-client/pkg/decode"
	"github.com/Sternrassler/photo-feed-client/pkg/grid"
	"github.com/Sternrassler/photo-feed-client/pkg/pagination"
	"github.com/Sternrassler/photo-feed-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// recordingView records render sink calls. Accessed only on the engine queue.
type recordingView struct {
	items []pagination.Item
	slots map[int]*decode.Image
}

func (v *recordingView) Reload(items []pagination.Item)            { v.items = items }
func (v *recordingView) RenderSlot(slot, _ int, img *decode.Image) { v.slots[slot] = img }
func (v *recordingView) ShowLoader(bool)                           {}

func newView() *recordingView {
	return &recordingView{slots: make(map[int]*decode.Image)}
}

func startClient(t *testing.T, api *testutil.MockAPI, rdb *redis.Client, view grid.View) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("integration-key", "PhotoFeedTest/1.0.0 (integration@test.com)")
	cfg.Redis = rdb
	cfg.Pagination.Endpoint = api.PhotosURL()
	cfg.Pagination.Timeout = 5 * time.Second
	cfg.Fetch.Timeout = 5 * time.Second
	cfg.Grid.SettleWindow = 0

	c, err := client.New(cfg, view)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		c.Close()
		cancel()
		<-c.Queue().Done()
	})
	return c
}

// TestFullFlow tests page load → quota update in Redis → image fetch → cache hit.
func TestFullFlow(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetImage("/images/a.png", testutil.PNG(8, 6))
	api.SetPage(1, testutil.PhotosJSON(api.ImageURL("/images/a.png"), "https://img.example/b"))
	api.SetPage(2, testutil.PhotosJSON("https://img.example/c"))

	view := newView()
	c := startClient(t, api, rdb, view)
	q := c.Queue()

	t.Log("Step 1: first page")
	c.Start()
	if !testutil.Eventually(t, q, 5*time.Second, func() bool { return len(view.items) == 2 }) {
		t.Fatal("First page never loaded")
	}

	remaining, err := rdb.Get(context.Background(), ratelimit.RedisKeyRemaining).Int()
	if err != nil {
		t.Fatalf("Quota not stored in Redis: %v", err)
	}
	if remaining != 49 {
		t.Errorf("Redis remaining = %d, want 49", remaining)
	}

	t.Log("Step 2: image fetch, then cache hit")
	c.BindSlot(0, 0)
	if !testutil.Eventually(t, q, 5*time.Second, func() bool { return view.slots[0] != nil }) {
		t.Fatal("Image never rendered")
	}
	c.BindSlot(1, 0)
	if !testutil.Eventually(t, q, 5*time.Second, func() bool { return view.slots[1] != nil }) {
		t.Fatal("Cached image never rendered")
	}
	if got := api.GetPathCount("/images/a.png"); got != 1 {
		t.Errorf("image requests = %d, want 1", got)
	}

	t.Log("Step 3: next page")
	c.ItemWillDisplay(1)
	if !testutil.Eventually(t, q, 5*time.Second, func() bool { return len(view.items) == 3 }) {
		t.Fatal("Second page never loaded")
	}
}

// TestSharedQuota verifies that two engines using one Redis see the same quota.
func TestSharedQuota(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetQuota(50, 2)
	api.SetPage(1, testutil.PhotosJSON("https://img.example/a"))

	viewA := newView()
	a := startClient(t, api, rdb, viewA)
	a.Start()
	if !testutil.Eventually(t, a.Queue(), 5*time.Second, func() bool { return len(viewA.items) == 1 }) {
		t.Fatal("Engine A never loaded its first page")
	}

	viewB := newView()
	b := startClient(t, api, rdb, viewB)

	state, err := b.QuotaState(context.Background())
	if err != nil {
		t.Fatalf("QuotaState() error = %v", err)
	}
	if state == nil || state.Remaining != 1 {
		t.Fatalf("Engine B quota = %+v, want remaining 1 from engine A", state)
	}

	// Engine B is blocked without touching the API.
	b.Start()
	time.Sleep(200 * time.Millisecond)
	b.Sync(func(g *grid.Controller) {
		if len(viewB.items) != 0 {
			t.Errorf("Engine B loaded %d items, want 0", len(viewB.items))
		}
	})
	if got := api.GetPathCount(testutil.PhotosPath); got != 1 {
		t.Errorf("listing requests = %d, want 1", got)
	}
}

// TestMetricsIncremented verifies page and image metrics move.
func TestMetricsIncremented(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetPage(1, testutil.PhotosJSON("https://img.example/a", "https://img.example/b"))

	before := counterValue(t, "feed_page_items_total")

	view := newView()
	c := startClient(t, api, rdb, view)
	c.Start()
	if !testutil.Eventually(t, c.Queue(), 5*time.Second, func() bool { return len(view.items) == 2 }) {
		t.Fatal("First page never loaded")
	}

	if got := counterValue(t, "feed_page_items_total") - before; got != 2 {
		t.Errorf("feed_page_items_total increased by %v, want 2", got)
	}
}

func counterValue(t *testing.T, name string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}
