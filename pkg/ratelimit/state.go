// Package ratelimit tracks the ordering API's request budget, reported in
// the X-RateLimit-Remaining and X-RateLimit-Reset response headers, and
// gates outgoing requests on it. State lives in Redis so every client
// instance behind the same API key shares one view of the budget.
package ratelimit

import "time"

// Redis keys for the shared budget.
const (
	RedisKeyRemaining      = "favorites:rate_limit:remaining"
	RedisKeyResetTimestamp = "favorites:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "favorites:rate_limit:last_update"
)

// Response headers carrying the budget.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Budget thresholds.
const (
	// ThresholdCritical blocks requests below this many remaining calls.
	ThresholdCritical = 3

	// ThresholdWarning throttles requests below this many remaining calls.
	ThresholdWarning = 15

	// ThresholdHealthy and above is reported as healthy.
	ThresholdHealthy = 40
)

// RateLimitState is the last budget seen from the API.
type RateLimitState struct {
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	LastUpdate time.Time `json:"last_update"`
	IsHealthy  bool      `json:"is_healthy"`
}

// IsStale reports whether the state is older than maxAge.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock reports whether requests must be refused until reset.
// A window that already reset never blocks.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling reports whether requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the time left in the current window, never negative.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
