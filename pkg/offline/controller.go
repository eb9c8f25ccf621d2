package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/offline-cache/pkg/cache"
	"github.com/Sternrassler/offline-cache/pkg/logging"
	"github.com/Sternrassler/offline-cache/pkg/precache"
	"github.com/rs/zerolog"
)

// DefaultManifest is the application shell cached on install.
var DefaultManifest = []string{
	"/",
	"/assets/app.css",
	"/assets/app.js",
	"/images/logo.svg",
	"/favicon.ico",
	"/offline.html",
	"/manifest.json",
}

const (
	// DefaultCachePrefix is the store name prefix.
	DefaultCachePrefix = "talent-cache"

	// DefaultVersion is the version tag of the store name.
	DefaultVersion = "v1"

	// DefaultOfflinePage is served to navigations when the network is down.
	DefaultOfflinePage = "/offline.html"

	// DefaultMaxEntrySize caps the body size copied into the cache.
	DefaultMaxEntrySize = 10 << 20
)

// Config holds the controller configuration.
type Config struct {
	// Origin is the scheme and host the controller serves (REQUIRED)
	Origin *url.URL

	// Storage holds the named cache stores (REQUIRED)
	Storage cache.Storage

	// Network carries requests the cache cannot answer (default: http.DefaultTransport)
	Network http.RoundTripper

	// Version tags the store name: <Prefix>-<Version>
	Prefix  string
	Version string

	// Manifest lists origin-relative paths cached on install
	Manifest []string

	// OfflinePage is served to failed navigations; it should be in Manifest
	OfflinePage string

	// Policy selects the requests that bypass the cache
	Policy Policy

	// Precache configures manifest fetching during install
	Precache precache.Config

	// MaxEntrySize is the largest body stored on a miss; larger responses
	// are still returned, just not cached (0 disables the cap)
	MaxEntrySize int64
}

// DefaultConfig returns a configuration with the default shell and policy.
func DefaultConfig(origin *url.URL, storage cache.Storage) Config {
	manifest := make([]string, len(DefaultManifest))
	copy(manifest, DefaultManifest)

	return Config{
		Origin:      origin,
		Storage:     storage,
		Network:     http.DefaultTransport,
		Prefix:      DefaultCachePrefix,
		Version:     DefaultVersion,
		Manifest:    manifest,
		OfflinePage: DefaultOfflinePage,
		Policy:      DefaultPolicy(),
		Precache:    precache.DefaultConfig(),

		MaxEntrySize: DefaultMaxEntrySize,
	}
}

// Controller mediates requests for one deployed version.
// It implements http.RoundTripper.
type Controller struct {
	config  Config
	name    string
	network http.RoundTripper
	fetcher *precache.Fetcher
	logger  zerolog.Logger

	mu    sync.RWMutex
	store cache.Store

	// pending tracks asynchronous cache writes
	pending sync.WaitGroup
}

// New creates a controller. Nothing is fetched or stored until Install.
func New(cfg Config) (*Controller, error) {
	if cfg.Origin == nil || cfg.Origin.Host == "" {
		return nil, fmt.Errorf("origin with scheme and host is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("version is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultCachePrefix
	}
	if cfg.Network == nil {
		cfg.Network = http.DefaultTransport
	}
	if cfg.OfflinePage == "" {
		cfg.OfflinePage = DefaultOfflinePage
	}

	name := cfg.Prefix + "-" + cfg.Version

	return &Controller{
		config:  cfg,
		name:    name,
		network: cfg.Network,
		fetcher: precache.NewFetcher(cfg.Network, cfg.Precache),
		logger: logging.NewLogger(logging.ComponentController).With().
			Str("cache", name).
			Logger(),
	}, nil
}

// CacheName returns the name of the store owned by this version.
func (c *Controller) CacheName() string {
	return c.name
}

// Version returns the configured version tag.
func (c *Controller) Version() string {
	return c.config.Version
}

// Installed reports whether Install completed successfully.
func (c *Controller) Installed() bool {
	return c.currentStore() != nil
}

func (c *Controller) currentStore() cache.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// Install opens the version's store and fills it with the manifest.
// Any manifest entry that cannot be fetched fails the install and
// leaves the store untouched.
func (c *Controller) Install(ctx context.Context) error {
	start := time.Now()

	store, err := c.config.Storage.Open(ctx, c.name)
	if err != nil {
		offlineInstallTotal.WithLabelValues("failure").Inc()
		c.logger.Error().Err(err).Msg("Failed to open cache store")
		return fmt.Errorf("%w: open store %s: %w", ErrInstallFailed, c.name, err)
	}

	items, err := c.fetcher.FetchAll(ctx, c.config.Origin, c.config.Manifest)
	if err != nil {
		offlineInstallTotal.WithLabelValues("failure").Inc()
		c.logger.Error().Err(err).Msg("Failed to fetch manifest")
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	if err := store.PutAll(ctx, items); err != nil {
		offlineInstallTotal.WithLabelValues("failure").Inc()
		c.logger.Error().Err(err).Msg("Failed to store manifest")
		return fmt.Errorf("%w: store manifest: %w", ErrInstallFailed, err)
	}

	c.mu.Lock()
	c.store = store
	c.mu.Unlock()

	offlineInstallTotal.WithLabelValues("success").Inc()
	c.logger.Info().
		Int("entries", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Cache opened and manifest stored")

	return nil
}

// Activate deletes every store except this version's.
// Running it again with no version change deletes nothing.
func (c *Controller) Activate(ctx context.Context) ([]string, error) {
	if !c.Installed() {
		return nil, ErrNotInstalled
	}

	names, err := c.config.Storage.Keys(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to list cache stores")
		return nil, fmt.Errorf("%w: list stores: %w", ErrActivateFailed, err)
	}

	var deleted []string
	for _, name := range names {
		if name == c.name {
			continue
		}
		ok, err := c.config.Storage.Delete(ctx, name)
		if err != nil {
			c.logger.Error().Err(err).Str("stale", name).Msg("Failed to delete stale cache store")
			return deleted, fmt.Errorf("%w: delete store %s: %w", ErrActivateFailed, name, err)
		}
		if ok {
			deleted = append(deleted, name)
			offlineStoresDeletedTotal.Inc()
			c.logger.Info().Str("stale", name).Msg("Deleted stale cache store")
		}
	}

	return deleted, nil
}

// RoundTrip answers req from the cache, the network, or a fallback.
// Errors are only returned for bypassed requests; everything else
// resolves to a response.
func (c *Controller) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	store := c.currentStore()
	if store == nil || Decide(req, c.config.Policy) == RouteBypass {
		c.logger.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("Bypassing cache")
		observe("bypass", start)
		return c.network.RoundTrip(req)
	}

	ctx := req.Context()
	key := cache.KeyFor(req)

	entry, err := store.Match(ctx, key)
	switch {
	case err == nil:
		c.logger.Debug().Str("path", req.URL.Path).Msg("Cache hit")
		observe("hit", start)
		return cache.EntryToResponse(entry, req), nil
	case !errors.Is(err, cache.ErrCacheMiss):
		// A broken store must not break the page
		c.logger.Warn().Err(err).Str("path", req.URL.Path).Msg("Cache lookup failed, using network")
	}

	resp, netErr := c.network.RoundTrip(req)
	typ := ResponseType(req, c.config.Origin)
	outcome := Settle(req, resp, typ, netErr)

	if outcome == OutcomeStore {
		// The caller streams the live body; the copy is stored once it completes
		cache.CaptureResponse(resp, typ, c.config.MaxEntrySize, func(snapshot *cache.Entry) {
			c.storeAsync(ctx, store, key, snapshot)
		})
	}

	switch outcome {
	case OutcomeOfflinePage:
		c.logger.Warn().Err(netErr).Str("path", req.URL.Path).Msg("Network failed, serving offline page")
		resp = c.offlinePage(ctx, store, req)

	case OutcomePlaceholder:
		c.logger.Warn().Err(netErr).Str("path", req.URL.Path).Msg("Network failed, serving placeholder")
		resp = cache.EmptyResponse(req, http.StatusRequestTimeout)
	}

	observe(string(outcome), start)
	return resp, nil
}

// storeAsync writes a snapshot without holding up the response.
func (c *Controller) storeAsync(ctx context.Context, store cache.Store, key cache.RequestKey, entry *cache.Entry) {
	ctx = context.WithoutCancel(ctx)

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		if err := store.Put(ctx, key, entry); err != nil {
			offlineCacheWriteFailures.Inc()
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache response")
			return
		}
		c.logger.Debug().Str("key", key.String()).Int("bytes", len(entry.Data)).Msg("Cached response")
	}()
}

// offlinePage returns the cached offline page, or a bare 503 when even
// that is missing.
func (c *Controller) offlinePage(ctx context.Context, store cache.Store, req *http.Request) *http.Response {
	ref, err := url.Parse(c.config.OfflinePage)
	if err == nil {
		key := cache.KeyForURL(c.config.Origin.ResolveReference(ref))
		// The request context may be what failed the network call
		entry, err := store.Match(context.WithoutCancel(ctx), key)
		if err == nil {
			return cache.EntryToResponse(entry, req)
		}
		c.logger.Error().Err(err).Str("page", c.config.OfflinePage).Msg("Offline page not in cache")
	}

	resp := cache.EmptyResponse(req, http.StatusServiceUnavailable)
	const body = "offline"
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp.Body = io.NopCloser(strings.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp
}

// Wait blocks until every pending cache write has finished.
func (c *Controller) Wait() {
	c.pending.Wait()
}

func observe(outcome string, start time.Time) {
	offlineFetchTotal.WithLabelValues(outcome).Inc()
	offlineFetchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
