// Package testutil provides testing utilities for the offline cache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock origin response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable application origin for testing.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests map[string]int
	total    int
	offline  bool
}

// NewMockOrigin creates a new mock origin server.
// Paths without a configured response answer 404.
func NewMockOrigin() *MockOrigin {
	m := &MockOrigin{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.total++
		m.requests[r.Method+" "+r.URL.Path]++
		offline := m.offline
		handler, exists := m.handlers[r.URL.Path]
		m.mu.Unlock()

		if offline {
			// Drop the connection so the client sees a network error
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return m
}

// URL returns the mock server base URL.
func (m *MockOrigin) URL() *url.URL {
	u, _ := url.Parse(m.server.URL)
	return u
}

// Client returns an HTTP client wired to the mock server.
func (m *MockOrigin) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// SetOffline makes every following request fail at the connection level.
func (m *MockOrigin) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = 0
	m.requests = make(map[string]int)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" && r.Method != http.MethodHead {
			w.Write([]byte(resp.Body))
		}
	})
}

// ServeShell configures 200 responses for every path in manifest.
// The body of each response is the path itself.
func (m *MockOrigin) ServeShell(manifest []string) {
	for _, p := range manifest {
		m.SetResponse(p, NewOKResponse(p, contentTypeFor(p)))
	}
}

// RequestCount returns the total number of requests received.
func (m *MockOrigin) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// RequestsFor returns the number of requests received for method and path.
func (m *MockOrigin) RequestsFor(method, path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[method+" "+path]
}

// NewOKResponse creates a 200 OK response.
func NewOKResponse(body, contentType string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": contentType,
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "internal server error",
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}

func contentTypeFor(p string) string {
	switch {
	case strings.HasSuffix(p, ".css"):
		return "text/css"
	case strings.HasSuffix(p, ".js"):
		return "text/javascript"
	case strings.HasSuffix(p, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(p, ".ico"):
		return "image/x-icon"
	case strings.HasSuffix(p, ".json"):
		return "application/manifest+json"
	case strings.HasSuffix(p, ".png"):
		return "image/png"
	default:
		return "text/html; charset=utf-8"
	}
}
