package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRetryExhausted is returned when all retry attempts failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends during a backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the shared budget is critical.
	ErrRateLimited = errors.New("request blocked: rate limit critical")
)

// ErrorClass classifies a failed request for retries and metrics.
type ErrorClass string

const (
	ErrorClassClient    ErrorClass = "client"
	ErrorClassServer    ErrorClass = "server"
	ErrorClassRateLimit ErrorClass = "rate_limit"
	ErrorClassNetwork   ErrorClass = "network"
)

// RequestError is an HTTP failure whose body was not an API envelope.
type RequestError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (status %d): %s: %v", e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// APIError is a response envelope with "error": true. Result holds the
// server's payload verbatim.
type APIError struct {
	StatusCode int
	Endpoint   string
	Result     json.RawMessage
}

func (e *APIError) Error() string {
	msgs := e.Messages()
	if len(msgs) == 0 {
		return fmt.Sprintf("api error (status %d) on %s", e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("api error (status %d) on %s: %s", e.StatusCode, e.Endpoint, strings.Join(msgs, "; "))
}

// Messages flattens the payload into human readable messages. The API
// reports errors as a string, a list of strings, or an object with a
// "message" field.
func (e *APIError) Messages() []string {
	if len(e.Result) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(e.Result, &list); err == nil {
		return list
	}

	var single string
	if err := json.Unmarshal(e.Result, &single); err == nil {
		return []string{single}
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Result, &obj); err == nil && obj.Message != "" {
		return []string{obj.Message}
	}

	return []string{string(e.Result)}
}

// IsAPIError reports whether err carries a server-reported error envelope.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// shouldRetry reports whether a failure of this class is worth retrying.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}
