package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "favorites_rate_limit_remaining",
		Help: "Requests remaining in the current API rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "favorites_rate_limit_blocks_total",
		Help: "Requests refused because the rate limit budget was critical",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "favorites_rate_limit_throttles_total",
		Help: "Requests delayed because the rate limit budget was low",
	})
)

// DefaultThrottleDelay is how long a request waits in the warning band.
const DefaultThrottleDelay = 500 * time.Millisecond

// Tracker keeps the shared budget in Redis and gates requests on it.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration
}

// NewTracker creates a tracker. throttleDelay <= 0 uses DefaultThrottleDelay.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, throttleDelay time.Duration) *Tracker {
	if throttleDelay <= 0 {
		throttleDelay = DefaultThrottleDelay
	}
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: throttleDelay,
	}
}

// ParseHeaders extracts the budget from response headers. ok is false when
// the response carries no rate limit headers at all.
func ParseHeaders(headers http.Header) (remaining int, resetIn time.Duration, ok bool, err error) {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return 0, 0, false, nil
	}

	remaining, err = strconv.Atoi(remainStr)
	if err != nil {
		return 0, 0, false, fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return 0, 0, false, fmt.Errorf("%s header missing", HeaderReset)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return 0, 0, false, fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	return remaining, time.Duration(resetSeconds) * time.Second, true, nil
}

// GetState loads the budget from Redis. With nothing stored yet it returns
// a healthy default.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	remaining, err := t.redis.Get(ctx, RedisKeyRemaining).Int()
	if errors.Is(err, redis.Nil) {
		return &RateLimitState{
			Remaining:  ThresholdHealthy,
			ResetAt:    time.Now(),
			LastUpdate: time.Now(),
			IsHealthy:  true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	resetTimestamp, err := t.redis.Get(ctx, RedisKeyResetTimestamp).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	state := &RateLimitState{
		Remaining: remaining,
		ResetAt:   time.Unix(resetTimestamp, 0),
	}

	lastUpdate, err := t.redis.Get(ctx, RedisKeyLastUpdate).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get last update: %w", err)
	}
	if len(lastUpdate) > 0 {
		if err := json.Unmarshal(lastUpdate, &state.LastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state.UpdateHealth()
	return state, nil
}

// UpdateFromHeaders stores the budget reported by a response.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remaining, resetIn, ok, err := ParseHeaders(headers)
	if err != nil || !ok {
		return err
	}

	now := time.Now()
	state := &RateLimitState{
		Remaining:  remaining,
		ResetAt:    now.Add(resetIn),
		LastUpdate: now,
	}
	state.UpdateHealth()

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	// Keys expire with the window so a stale budget never outlives it.
	ttl := resetIn + time.Minute
	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyRemaining, remaining, ttl)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	rateLimitRemaining.Set(float64(remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().Int("remaining", remaining).Time("reset_at", state.ResetAt).
			Msg("Rate limit critical - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().Int("remaining", remaining).Time("reset_at", state.ResetAt).
			Msg("Rate limit low - requests will be throttled")
	default:
		t.logger.Debug().Int("remaining", remaining).Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may go out now. In the
// warning band it first waits throttleDelay or until ctx is done.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")
		rateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().Int("remaining", state.Remaining).Msg("Rate limit low - throttling request")
		rateLimitThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttleDelay):
		}
	}

	return true, nil
}
