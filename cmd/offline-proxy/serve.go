package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/offline-cache/internal/config"
	"github.com/Sternrassler/offline-cache/pkg/cache"
	"github.com/Sternrassler/offline-cache/pkg/installprompt"
	"github.com/Sternrassler/offline-cache/pkg/logging"
	"github.com/Sternrassler/offline-cache/pkg/metrics"
	"github.com/Sternrassler/offline-cache/pkg/offline"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the application through the offline cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg)
		},
	}

	cmd.Flags().String("listen", "", "listen address (env OFFLINE_LISTEN_ADDR)")
	cmd.Flags().String("backend", "", "cache backend: memory or redis (env OFFLINE_BACKEND)")
	cmd.Flags().String("version-tag", "", "cache version tag (env OFFLINE_VERSION)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.NewLogger(logging.ComponentServer)

	upstream, err := cfg.UpstreamURL()
	if err != nil {
		return err
	}

	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	network := http.DefaultTransport.(*http.Transport).Clone()
	reg := offline.NewRegistration(network, cfg.SkipWaiting)

	controller, err := newController(cfg, upstream, storage, network)
	if err != nil {
		return err
	}
	if err := reg.Register(ctx, controller); err != nil {
		// Keep serving: requests pass through until a version installs
		logger.Error().Err(err).Msg("Initial install failed, proxying without cache")
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newMux(upstream, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("upstream", upstream.String()).
			Str("backend", string(cfg.Backend)).
			Str("cache", controller.CacheName()).
			Msg("Starting offline proxy")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	reg.Wait()
	logger.Info().Msg("Pending cache writes flushed")
	return nil
}

func openStorage(ctx context.Context, cfg config.Config) (cache.Storage, func(), error) {
	logger := logging.NewLogger(logging.ComponentServer)

	if cfg.Backend != config.BackendRedis {
		return cache.NewMemoryStorage(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

	return cache.NewRedisStorage(client, cfg.RedisPrefix), func() { client.Close() }, nil
}

func newController(cfg config.Config, upstream *url.URL, storage cache.Storage, network http.RoundTripper) (*offline.Controller, error) {
	ccfg := offline.DefaultConfig(upstream, storage)
	ccfg.Network = network
	ccfg.Prefix = cfg.CachePrefix
	ccfg.Version = cfg.Version
	if len(cfg.BypassPatterns) > 0 {
		ccfg.Policy = offline.Policy{BypassPatterns: cfg.BypassPatterns}
	}
	return offline.New(ccfg)
}

func newMux(upstream *url.URL, reg *offline.Registration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(reg))
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", installprompt.CountClients(newProxy(upstream, reg)))
	return mux
}

func newProxy(upstream *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	logger := logging.NewLogger(logging.ComponentServer)

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Upstream request failed")
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports ready once a controller version is in control.
func readyHandler(reg *offline.Registration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := reg.Active()
		if active == nil {
			http.Error(w, "no cache version active", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK %s", active.CacheName())
	}
}
