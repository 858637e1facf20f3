// Package client is the HTTP client for the ordering API. It stamps the
// application and session headers on every request, gates requests on the
// shared rate limit budget, retries transient failures, caches
// reconciliation lookups in Redis and decodes the {error, result,
// pagination} response envelope.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ordering-favorites/pkg/cache"
	"github.com/Sternrassler/ordering-favorites/pkg/pagination"
	"github.com/Sternrassler/ordering-favorites/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_api_requests_total",
		Help: "Ordering API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "favorites_api_request_duration_seconds",
		Help:    "Ordering API request duration by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_api_errors_total",
		Help: "Ordering API errors by class",
	}, []string{"class"})

	apiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_api_retries_total",
		Help: "Retry attempts by error class",
	}, []string{"error_class"})

	apiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "favorites_api_retry_backoff_seconds",
		Help:    "Backoff before a retry by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	apiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_api_retry_exhausted_total",
		Help: "Requests that used up every retry attempt by error class",
	}, []string{"error_class"})
)

// Request headers understood by the ordering API.
const (
	HeaderAppID     = "X-App-X"
	HeaderSocketID  = "X-Socket-Id-X"
	HeaderRequestID = "X-Request-Id"
)

// Client talks to one ordering API project.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the project root, e.g. https://apiv4.ordering.co/v400/en/demo.
	BaseURL string

	// AppID is sent as X-App-X on every request.
	AppID string

	// Redis enables the lookup cache and the shared rate limit budget.
	// Optional.
	Redis *redis.Client

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// CacheTTL is the lifetime of cached lookups without caching headers.
	CacheTTL time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialBackoff overrides the per-class initial backoff when set.
	InitialBackoff time.Duration

	// ThrottleDelay is the wait imposed while the rate limit budget is low.
	ThrottleDelay time.Duration
}

// DefaultConfig returns a configuration with conservative defaults.
func DefaultConfig(baseURL, appID string) Config {
	return Config{
		BaseURL:    baseURL,
		AppID:      appID,
		Timeout:    20 * time.Second,
		CacheTTL:   cache.DefaultTTL,
		MaxRetries: 2,
	}
}

// New validates cfg and creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if cfg.AppID == "" {
		return nil, fmt.Errorf("app id is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	logger := log.With().Str("component", "api-client").Logger()

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.rateLimiter = ratelimit.NewTracker(cfg.Redis, logger, cfg.ThrottleDelay)
		c.cache = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	return c, nil
}

// Envelope is the ordering API response body.
type Envelope struct {
	Error      bool              `json:"error"`
	Result     json.RawMessage   `json:"result"`
	Pagination *pagination.State `json:"pagination,omitempty"`
}

// DecodeResult unmarshals the envelope's result into v.
func (e *Envelope) DecodeResult(v any) error {
	if len(e.Result) == 0 || string(e.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Result, v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// Call sends method path?query and decodes the envelope. A transport
// failure returns the underlying error; an envelope with "error": true
// returns *APIError.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body any, opts ...CallOption) (*Envelope, error) {
	o := collectOptions(opts)

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	o.apply(req)

	var resp *http.Response
	if method == http.MethodGet && o.cache && c.cache != nil {
		resp, err = c.doCached(req, cache.CacheKey{Endpoint: path, QueryParams: query, UserID: o.cacheUser})
	} else {
		resp, err = c.Do(req)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, path)
}

// Get is Call with GET and no body.
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts ...CallOption) (*Envelope, error) {
	return c.Call(ctx, http.MethodGet, path, query, nil, opts...)
}

func decodeEnvelope(resp *http.Response, path string) (*Envelope, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &RequestError{
				StatusCode: resp.StatusCode,
				ErrorClass: classifyStatus(resp.StatusCode),
				Message:    resp.Status,
				Err:        err,
			}
		}
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Error {
		return &env, &APIError{StatusCode: resp.StatusCode, Endpoint: path, Result: env.Result}
	}
	return &env, nil
}

// Do sends req through the rate limiter and the retry loop. Responses
// with a 4xx status, and 5xx responses carrying an {"error": true}
// envelope, are returned to the caller, not retried. Only idempotent
// methods are retried; a POST is sent once.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)

	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by rate limiter")
			apiRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return nil, ErrRateLimited
		}
	}

	req.Header.Set(HeaderAppID, c.config.AppID)
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}

	logger := c.logger.With().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Str("request_id", req.Header.Get(HeaderRequestID)).
		Logger()
	logger.Debug().Msg("Executing API request")

	policy := c.retryPolicy
	if !idempotent(req.Method) {
		policy = func(class ErrorClass) RetryConfig {
			cfg := c.retryPolicy(class)
			cfg.MaxAttempts = 1
			return cfg
		}
	}

	var resp *http.Response
	attempt := 0
	err := retryWithBackoff(ctx, logger, policy, func() (ErrorClass, error) {
		attempt++
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return "", fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(req)
		if reqErr != nil {
			logger.Error().Err(reqErr).Msg("HTTP request failed")
			apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return ErrorClassNetwork, reqErr
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
				logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}
		}

		apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode < 400 {
			return "", nil
		}

		class := classifyStatus(resp.StatusCode)
		apiErrorsTotal.WithLabelValues(string(class)).Inc()
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("API request error")

		if !shouldRetry(class) {
			// Let the caller decode the error envelope.
			return "", nil
		}
		if class == ErrorClassServer && hasErrorEnvelope(resp) {
			return "", nil
		}

		resp.Body.Close()
		return class, &RequestError{StatusCode: resp.StatusCode, ErrorClass: class, Message: resp.Status}
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// idempotent reports whether method may be sent more than once.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// hasErrorEnvelope reports whether resp carries an {"error": true}
// envelope. The body is buffered and left readable.
func hasErrorEnvelope(resp *http.Response) bool {
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return false
	}
	var env struct {
		Error bool `json:"error"`
	}
	return json.Unmarshal(data, &env) == nil && env.Error
}

// doCached serves GET lookups from Redis, revalidating entries that carry
// an ETag or Last-Modified.
func (c *Client) doCached(req *http.Request, key cache.CacheKey) (*http.Response, error) {
	ctx := req.Context()

	entry, err := c.cache.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
	}

	if entry != nil {
		if !cache.ShouldMakeConditionalRequest(entry) {
			c.logger.Debug().Str("key", key.String()).Msg("Serving lookup from cache")
			return cache.EntryToResponse(entry), nil
		}
		cache.AddConditionalHeaders(req, entry)
		cache.ConditionalRequestsSent.Inc()
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified && entry != nil {
		cache.NotModifiedResponses.Inc()

		// ResponseToEntry drains and closes the 304 body.
		refreshed, err := cache.ResponseToEntry(resp, c.cache.FallbackTTL())
		resp.Body.Close()
		if err == nil {
			if err := c.cache.UpdateTTL(ctx, key, refreshed.Expires); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
			}
		}
		return cache.EntryToResponse(entry), nil
	}

	if resp.StatusCode == http.StatusOK {
		fresh, err := cache.ResponseToEntry(resp, c.cache.FallbackTTL())
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
			return resp, nil
		}
		// Error envelopes arrive with 200 too; never cache them.
		var env struct {
			Error bool `json:"error"`
		}
		if json.Unmarshal(fresh.Data, &env) == nil && !env.Error {
			if err := c.cache.Set(ctx, key, fresh); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				c.logger.Debug().Str("key", key.String()).Dur("ttl", fresh.TTL()).Msg("Cached lookup")
			}
		}
	}

	return resp, nil
}

// InvalidateUser drops every cached lookup of userID. Without Redis it is
// a no-op.
func (c *Client) InvalidateUser(ctx context.Context, userID int64) error {
	if c.cache == nil {
		return nil
	}
	n, err := c.cache.InvalidateUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	c.logger.Debug().Int64("user_id", userID).Int("removed", n).Msg("Invalidated cached lookups")
	return nil
}

func (c *Client) retryPolicy(class ErrorClass) RetryConfig {
	cfg := RetryConfigForErrorClass(class)
	cfg.MaxAttempts = c.config.MaxRetries + 1
	if c.config.InitialBackoff > 0 {
		cfg.InitialBackoff = c.config.InitialBackoff
		if cfg.MaxBackoff < cfg.InitialBackoff {
			cfg.MaxBackoff = cfg.InitialBackoff
		}
	}
	return cfg
}

// classifyStatus maps an HTTP status to an ErrorClass ("" for success).
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

var numericSegment = regexp.MustCompile(`/\d+(/|$)`)

// endpointLabel replaces numeric path segments so metric labels stay bounded.
func endpointLabel(path string) string {
	for numericSegment.MatchString(path) {
		path = numericSegment.ReplaceAllString(path, "/:id$1")
	}
	return path
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// BaseURL returns the configured project root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
