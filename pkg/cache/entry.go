package cache

import (
	"net/http"
	"time"
)

// ResponseType mirrors the fetch response type of a cached response.
type ResponseType string

const (
	// TypeBasic is a same-origin response.
	TypeBasic ResponseType = "basic"

	// TypeCORS is a cross-origin response with readable body.
	TypeCORS ResponseType = "cors"

	// TypeOpaque is a cross-origin response whose body cannot be inspected.
	TypeOpaque ResponseType = "opaque"
)

// Entry is a full snapshot of a response stored in a Store.
type Entry struct {
	// URL is the request URL the response was fetched for
	URL string `json:"url"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// Data is the response body
	Data []byte `json:"data"`

	// Type is the response type at the time it was stored
	Type ResponseType `json:"type"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the entry was stored.
func (e *Entry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}

// Size returns the approximate number of bytes the entry occupies.
func (e *Entry) Size() int {
	n := len(e.Data) + len(e.URL)
	for k, vs := range e.Headers {
		n += len(k)
		for _, v := range vs {
			n += len(v)
		}
	}
	return n
}
