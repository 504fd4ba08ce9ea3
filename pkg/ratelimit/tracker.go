package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_quota_remaining",
		Help: "Requests remaining in the current API quota window",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_quota_blocks_total",
		Help: "Total number of page requests refused because the quota is exhausted",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_quota_throttles_total",
		Help: "Total number of page requests delayed because the quota is low",
	})
)

// Config holds tracker configuration.
type Config struct {
	// Window is the quota window length. The API resets hourly.
	Window time.Duration

	// ThrottleDelay is how long a request waits while the quota is low.
	ThrottleDelay time.Duration
}

// DefaultConfig returns the tracker defaults for the photo API.
func DefaultConfig() Config {
	return Config{
		Window:        time.Hour,
		ThrottleDelay: time.Second,
	}
}

// Tracker monitors the API quota and gates page requests.
type Tracker struct {
	store  Store
	config Config
	logger zerolog.Logger
}

// NewTracker creates a new quota tracker.
func NewTracker(store Store, cfg Config, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.ThrottleDelay < 0 {
		cfg.ThrottleDelay = 0
	}
	return &Tracker{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// GetState retrieves the current quota state.
// Returns a default healthy state if nothing has been recorded.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quota state: %w", err)
	}

	if state == nil {
		t.logger.Debug().Msg("No quota state recorded, returning default healthy state")
		return &QuotaState{
			Limit:      QuotaThresholdHealthy * 2,
			Remaining:  QuotaThresholdHealthy * 2,
			ResetAt:    time.Now().Add(t.config.Window),
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}

	return state, nil
}

// UpdateFromHeaders parses quota headers and stores the new state.
// Responses without quota headers (e.g. image CDN) are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit := remain
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	now := time.Now()

	// The API does not announce its reset time; keep the current window
	// until it elapses.
	resetAt := now.Add(t.config.Window)
	if prev, err := t.store.Load(ctx); err == nil && prev != nil && prev.ResetAt.After(now) {
		resetAt = prev.ResetAt
	}

	state := &QuotaState{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    resetAt,
		LastUpdate: now,
	}
	state.UpdateHealth()

	if err := t.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save quota state: %w", err)
	}

	quotaRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", remain).
			Int("limit", limit).
			Time("reset_at", state.ResetAt).
			Msg("API quota CRITICAL - page requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remain).
			Int("limit", limit).
			Msg("API quota WARNING - page requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", limit).
			Bool("is_healthy", state.IsHealthy).
			Msg("API quota state updated")
	}

	return nil
}

// ShouldAllowRequest checks whether a page request may proceed.
// Returns false when the quota is critical. In the warning band it waits
// ThrottleDelay (or until ctx is done) before allowing the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("API quota critical - blocking request")

		quotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.config.ThrottleDelay).
			Msg("API quota warning - throttling request")

		quotaThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.config.ThrottleDelay):
		}
	}

	return true, nil
}
