package cache

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// RequestKey identifies a cached response by the request that produced it.
type RequestKey struct {
	// Method is the HTTP method (empty means GET)
	Method string

	// Scheme and Host of the request URL (empty for origin-relative keys)
	Scheme string
	Host   string

	// Path is the request path (e.g., "/images/logo.svg")
	Path string

	// Query are the query parameters (e.g., {"v": "2"})
	Query url.Values
}

// KeyFor builds the key for an outgoing request.
func KeyFor(req *http.Request) RequestKey {
	return RequestKey{
		Method: req.Method,
		Scheme: req.URL.Scheme,
		Host:   req.URL.Host,
		Path:   req.URL.Path,
		Query:  req.URL.Query(),
	}
}

// KeyForURL builds a GET key for an absolute URL.
func KeyForURL(u *url.URL) RequestKey {
	return RequestKey{
		Method: http.MethodGet,
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   u.Path,
		Query:  u.Query(),
	}
}

// String generates a deterministic key string.
// Format: METHOD scheme://host/path?q1=v1&q2=v2
//
// Example:
//
//	GET https://app.example.com/assets/app.js?v=2
func (k RequestKey) String() string {
	var b strings.Builder

	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}
	b.WriteString(method)
	b.WriteByte(' ')

	if k.Host != "" {
		scheme := strings.ToLower(k.Scheme)
		if scheme == "" {
			scheme = "http"
		}
		b.WriteString(scheme)
		b.WriteString("://")
		b.WriteString(strings.ToLower(k.Host))
	}

	path := k.Path
	if path == "" {
		path = "/"
	}
	b.WriteString(path)

	// Query params sorted for determinism
	if len(k.Query) > 0 {
		keys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		sep := byte('?')
		for _, key := range keys {
			for _, v := range k.Query[key] {
				b.WriteByte(sep)
				b.WriteString(url.QueryEscape(key))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
				sep = '&'
			}
		}
	}

	return b.String()
}
