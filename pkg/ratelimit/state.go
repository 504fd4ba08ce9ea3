// Package ratelimit implements API quota tracking and request gating.
// It monitors the X-Ratelimit-Limit and X-Ratelimit-Remaining headers returned
// by the photo API so page requests stop before the hourly quota runs out.
package ratelimit

import (
	"time"
)

// Response headers carrying quota information.
const (
	HeaderLimit     = "X-Ratelimit-Limit"
	HeaderRemaining = "X-Ratelimit-Remaining"
)

// Redis keys for quota state storage.
const (
	RedisKeyLimit          = "feed:quota:limit"
	RedisKeyRemaining      = "feed:quota:remaining"
	RedisKeyResetTimestamp = "feed:quota:reset_timestamp"
	RedisKeyLastUpdate     = "feed:quota:last_update"
)

// Thresholds for quota decisions.
const (
	// QuotaThresholdCritical blocks page requests when remaining falls below this value.
	QuotaThresholdCritical = 2

	// QuotaThresholdWarning throttles page requests when remaining falls below this value.
	QuotaThresholdWarning = 10

	// QuotaThresholdHealthy indicates normal operation.
	QuotaThresholdHealthy = 25
)

// QuotaState represents the current API quota.
// It may be shared across client instances using the same access key via Redis.
type QuotaState struct {
	// Limit is the request budget per window (X-Ratelimit-Limit).
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the window (X-Ratelimit-Remaining).
	Remaining int `json:"remaining"`

	// ResetAt is when the current window is assumed to end.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from response headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= QuotaThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be refused.
// A block lifts once the window has reset.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.Remaining < QuotaThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be delayed.
func (s *QuotaState) NeedsThrottling() bool {
	return s.Remaining < QuotaThresholdWarning && s.TimeUntilReset() > 0 && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *QuotaState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= QuotaThresholdHealthy
}
