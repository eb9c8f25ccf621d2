package precache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/offline-cache/pkg/cache"
	"github.com/Sternrassler/offline-cache/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int

	// Timeout per URL fetch, body included (0 leaves it to the transport)
	Timeout time.Duration

	// Retry applies to network errors and 5xx responses
	Retry RetryConfig
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
		Retry:          DefaultRetryConfig(),
	}
}

// Fetcher downloads manifest URLs into cache items.
type Fetcher struct {
	transport http.RoundTripper
	client    *http.Client
	config    Config
	logger    zerolog.Logger
}

// NewFetcher creates a fetcher issuing requests through transport.
func NewFetcher(transport http.RoundTripper, config Config) *Fetcher {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultRetryConfig()
	}

	// Redirects are followed; the final response is keyed on the manifest URL
	return &Fetcher{
		transport: transport,
		client:    &http.Client{Transport: transport},
		config:    config,
		logger:    logging.NewLogger(logging.ComponentPrecache),
	}
}

// FetchAll fetches every path of manifest, resolved against origin.
// Items are returned in manifest order. Any failure aborts the whole batch.
func (f *Fetcher) FetchAll(ctx context.Context, origin *url.URL, manifest []string) ([]cache.Item, error) {
	start := time.Now()

	targets := make([]*url.URL, len(manifest))
	for i, p := range manifest {
		ref, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("parse manifest entry %q: %w", p, err)
		}
		targets[i] = origin.ResolveReference(ref)
	}

	f.logger.Info().
		Str("origin", origin.String()).
		Int("urls", len(targets)).
		Msg("Starting precache")

	items := make([]cache.Item, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.MaxConcurrency)

	for i, target := range targets {
		g.Go(func() error {
			var entry *cache.Entry
			err := retryWithBackoff(gctx, f.config.Retry, f.logger, func() error {
				var fetchErr error
				entry, fetchErr = f.fetch(gctx, target)
				return fetchErr
			})
			if err != nil {
				f.logger.Warn().
					Err(err).
					Str("url", target.String()).
					Msg("Precache fetch failed")
				return err
			}

			// Each goroutine owns its own slot
			items[i] = cache.Item{Key: cache.KeyForURL(target), Entry: entry}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	f.logger.Info().
		Int("urls", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Precache complete")

	return items, nil
}

// fetch performs a single GET, following redirects, and snapshots the
// final response.
func (f *Fetcher) fetch(ctx context.Context, target *url.URL) (*cache.Entry, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target.String(), ErrorClass: ErrorClassNetwork, Err: err}
	}

	if class := classifyStatus(resp.StatusCode); class != "" {
		resp.Body.Close()
		return nil, &FetchError{URL: target.String(), StatusCode: resp.StatusCode, ErrorClass: class}
	}

	// Reads the body while the timeout still applies
	entry, err := cache.ResponseToEntry(resp, cache.TypeBasic)
	if err != nil {
		return nil, &FetchError{URL: target.String(), StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Err: err}
	}

	f.logger.Debug().
		Str("url", target.String()).
		Int("status", resp.StatusCode).
		Int("bytes", len(entry.Data)).
		Msg("Precached")

	return entry, nil
}
