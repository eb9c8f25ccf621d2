package offline

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/offline-cache/pkg/cache"
)

// DefaultBypassPatterns are the live-channel and API path fragments that
// never touch the cache.
var DefaultBypassPatterns = []string{"/live", "/api/"}

// BypassReason explains why a request skipped the cache.
type BypassReason string

const (
	// BypassNone means the request goes through the cache.
	BypassNone BypassReason = ""

	// BypassMethod means the request is not a GET.
	BypassMethod BypassReason = "method"

	// BypassPath means the path matched a live or API pattern.
	BypassPath BypassReason = "path"
)

// Policy decides which requests the controller mediates.
type Policy struct {
	// BypassPatterns are matched as substrings of the request path.
	BypassPatterns []string
}

// DefaultPolicy returns the policy with DefaultBypassPatterns.
func DefaultPolicy() Policy {
	patterns := make([]string, len(DefaultBypassPatterns))
	copy(patterns, DefaultBypassPatterns)
	return Policy{BypassPatterns: patterns}
}

// Bypass reports whether req must go straight to the network.
func (p Policy) Bypass(req *http.Request) BypassReason {
	if req.Method != "" && req.Method != http.MethodGet {
		return BypassMethod
	}
	path := req.URL.Path
	for _, pattern := range p.BypassPatterns {
		if pattern != "" && strings.Contains(path, pattern) {
			return BypassPath
		}
	}
	return BypassNone
}

// Route is the first-stage decision for a request.
type Route int

const (
	// RouteCache looks the request up in the current store.
	RouteCache Route = iota

	// RouteBypass sends the request to the network untouched.
	RouteBypass
)

// Outcome is what the controller does with the result of a network fetch.
type Outcome string

const (
	// OutcomeStore returns the live response and stores a copy.
	OutcomeStore Outcome = "stored"

	// OutcomePassThrough returns the live response uncached.
	OutcomePassThrough Outcome = "passthrough"

	// OutcomeOfflinePage answers a failed navigation with the offline page.
	OutcomeOfflinePage Outcome = "offline_page"

	// OutcomePlaceholder answers a failed sub-resource fetch with an empty 408.
	OutcomePlaceholder Outcome = "placeholder"
)

// Decide is the first stage: bypass or consult the cache.
func Decide(req *http.Request, policy Policy) Route {
	if policy.Bypass(req) != BypassNone {
		return RouteBypass
	}
	return RouteCache
}

// Settle is the second stage, after a cache miss went to the network.
// netErr is the transport error, resp the response when there was none.
func Settle(req *http.Request, resp *http.Response, typ cache.ResponseType, netErr error) Outcome {
	if netErr != nil || resp == nil {
		if IsNavigation(req) {
			return OutcomeOfflinePage
		}
		return OutcomePlaceholder
	}
	if cache.IsCacheable(resp, typ) {
		return OutcomeStore
	}
	return OutcomePassThrough
}

// ResponseType classifies the response to req against the controller origin.
func ResponseType(req *http.Request, origin *url.URL) cache.ResponseType {
	if sameOrigin(req.URL, origin) {
		return cache.TypeBasic
	}
	if ModeOf(req) == ModeNoCORS {
		return cache.TypeOpaque
	}
	return cache.TypeCORS
}

func sameOrigin(u, origin *url.URL) bool {
	if origin == nil {
		return false
	}
	// Origin-relative request URLs belong to the origin
	if u.Host == "" {
		return true
	}
	return strings.EqualFold(u.Scheme, origin.Scheme) && strings.EqualFold(u.Host, origin.Host)
}
