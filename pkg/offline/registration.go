package offline

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/Sternrassler/offline-cache/pkg/logging"
	"github.com/rs/zerolog"
)

// Registration tracks which controller version is in control.
//
// A new version is installed first; if that fails the previous version
// keeps serving. Once installed it either takes over at once (skip
// waiting) or waits for SkipWaiting. Taking over runs the activation
// cleanup, then claims every later request.
type Registration struct {
	network     http.RoundTripper
	skipWaiting bool
	logger      zerolog.Logger

	// mu serialises lifecycle transitions; requests never take it
	mu      sync.Mutex
	active  atomic.Pointer[Controller]
	waiting *Controller
	retired []*Controller
}

// NewRegistration creates a registration with no controller in control.
// Until one activates, requests go to network untouched.
func NewRegistration(network http.RoundTripper, skipWaiting bool) *Registration {
	if network == nil {
		network = http.DefaultTransport
	}
	return &Registration{
		network:     network,
		skipWaiting: skipWaiting,
		logger:      logging.NewLogger(logging.ComponentRegistration),
	}
}

// Register installs c and, depending on the waiting policy, activates it.
// When install fails the error is returned and the active version is unchanged.
func (r *Registration) Register(ctx context.Context, c *Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := r.logger.With().Str("version", c.Version()).Logger()
	logger.Info().Msg("Installing controller")

	if err := c.Install(ctx); err != nil {
		if prev := r.active.Load(); prev != nil {
			logger.Error().Err(err).Str("active", prev.Version()).Msg("Install failed, previous version stays active")
		} else {
			logger.Error().Err(err).Msg("Install failed, no version active")
		}
		return err
	}

	// The first controller never waits: there is nobody to wait for
	if !r.skipWaiting && r.active.Load() != nil {
		if r.waiting != nil {
			r.retired = append(r.retired, r.waiting)
		}
		r.waiting = c
		logger.Info().Msg("Controller installed and waiting")
		return nil
	}

	return r.activate(ctx, c)
}

// SkipWaiting activates the waiting controller, if any.
func (r *Registration) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiting == nil {
		return nil
	}
	return r.activate(ctx, r.waiting)
}

// activate runs the cleanup and claims requests. Caller holds mu.
func (r *Registration) activate(ctx context.Context, c *Controller) error {
	deleted, err := c.Activate(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("version", c.Version()).Msg("Activation failed")
		return err
	}

	prev := r.active.Swap(c)
	if prev != nil && prev != c {
		r.retired = append(r.retired, prev)
		offlineActiveVersion.WithLabelValues(prev.Version()).Set(0)
	}
	if r.waiting == c {
		r.waiting = nil
	}
	offlineActiveVersion.WithLabelValues(c.Version()).Set(1)

	r.logger.Info().
		Str("version", c.Version()).
		Str("cache", c.CacheName()).
		Strs("deleted", deleted).
		Msg("Controller activated and in control")

	return nil
}

// Active returns the controller in control, or nil.
func (r *Registration) Active() *Controller {
	return r.active.Load()
}

// Waiting returns the installed controller waiting to take over, or nil.
func (r *Registration) Waiting() *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// RoundTrip hands req to the controller in control. A request keeps the
// controller it started with even if another version takes over meanwhile.
func (r *Registration) RoundTrip(req *http.Request) (*http.Response, error) {
	if c := r.active.Load(); c != nil {
		return c.RoundTrip(req)
	}
	return r.network.RoundTrip(req)
}

// Wait blocks until every controller that ever served has flushed its
// pending cache writes.
func (r *Registration) Wait() {
	r.mu.Lock()
	controllers := append([]*Controller(nil), r.retired...)
	if r.waiting != nil {
		controllers = append(controllers, r.waiting)
	}
	if c := r.active.Load(); c != nil {
		controllers = append(controllers, c)
	}
	r.mu.Unlock()

	for _, c := range controllers {
		c.Wait()
	}
}
