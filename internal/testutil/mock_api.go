// Package testutil provides an in-process ordering API for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// MockResponse is a canned reply for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is what the mock saw for one request.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// MockAPI is a configurable fake of the ordering API.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockAPI starts a mock server. Unknown paths answer 404 with an error
// envelope.
func NewMockAPI() *MockAPI {
	m := &MockAPI{handlers: make(map[string]http.HandlerFunc)}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		handler, ok := m.handlers[r.Method+" "+r.URL.Path]
		if !ok {
			handler, ok = m.handlers[r.URL.Path]
		}
		m.mu.Unlock()

		if ok {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":true,"result":["NOT_FOUND"]}`))
	}))

	return m
}

// URL returns the server's base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset forgets recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// Handle installs handler for pattern, either "/path" or "METHOD /path".
func (m *MockAPI) Handle(pattern string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[pattern] = handler
}

// Respond installs a canned response for pattern.
func (m *MockAPI) Respond(pattern string, resp MockResponse) {
	m.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		w.Write([]byte(resp.Body))
	})
}

// Sequence answers pattern with each response in turn, repeating the last.
func (m *MockAPI) Sequence(pattern string, resps ...MockResponse) {
	var (
		mu sync.Mutex
		i  int
	)
	m.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[i]
		if i < len(resps)-1 {
			i++
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		w.Write([]byte(resp.Body))
	})
}

// Requests returns a copy of every recorded request.
func (m *MockAPI) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsTo returns recorded requests for path.
func (m *MockAPI) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range m.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// RequestCount returns the number of requests served.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Page is the pagination block of a favorites response.
type Page struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalPages  int `json:"total_pages"`
	Total       int `json:"total"`
	From        int `json:"from"`
	To          int `json:"to"`
}

// OK builds a successful envelope around result.
func OK(result any) MockResponse {
	return envelope(false, result, nil)
}

// OKPage builds a successful paginated envelope.
func OKPage(result any, page Page) MockResponse {
	return envelope(false, result, &page)
}

// Fail builds an error envelope; the API reports these with status 200.
func Fail(result any) MockResponse {
	return envelope(true, result, nil)
}

// ServerError builds a 500 response without an envelope.
func ServerError() MockResponse {
	return MockResponse{StatusCode: http.StatusInternalServerError, Body: "internal server error"}
}

func envelope(isErr bool, result any, page *Page) MockResponse {
	body := map[string]any{"error": isErr, "result": result}
	if page != nil {
		body["pagination"] = page
	}
	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return MockResponse{StatusCode: http.StatusOK, Body: string(data)}
}

// WithHeaders returns resp with extra headers set.
func (r MockResponse) WithHeaders(headers map[string]string) MockResponse {
	merged := make(map[string]string, len(r.Headers)+len(headers))
	for k, v := range r.Headers {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	r.Headers = merged
	return r
}
