package offline

import (
	"context"
	"net/http"
	"strings"
)

// Mode is the request mode of a fetch, as reported by Sec-Fetch-Mode.
type Mode string

const (
	// ModeUnknown means the client did not say.
	ModeUnknown Mode = ""

	// ModeNavigate is a top-level page load.
	ModeNavigate Mode = "navigate"

	// ModeSameOrigin is a sub-resource fetch restricted to the origin.
	ModeSameOrigin Mode = "same-origin"

	// ModeNoCORS is a cross-origin fetch whose response stays opaque.
	ModeNoCORS Mode = "no-cors"

	// ModeCORS is a cross-origin fetch with CORS.
	ModeCORS Mode = "cors"

	// ModeWebSocket is a websocket upgrade.
	ModeWebSocket Mode = "websocket"
)

type modeKey struct{}

// WithMode attaches a request mode to ctx. It takes precedence over
// the Sec-Fetch-Mode header.
func WithMode(ctx context.Context, mode Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, mode)
}

// ModeOf returns the request mode of req.
func ModeOf(req *http.Request) Mode {
	if m, ok := req.Context().Value(modeKey{}).(Mode); ok {
		return m
	}
	return Mode(strings.ToLower(strings.TrimSpace(req.Header.Get("Sec-Fetch-Mode"))))
}

// IsNavigation reports whether req is a top-level page load.
func IsNavigation(req *http.Request) bool {
	return ModeOf(req) == ModeNavigate
}
