// Package icons checks that the icons and manifest an installable web app
// needs are actually served.
package icons

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Sternrassler/offline-cache/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var iconsMissing = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "offline_icons_missing",
	Help: "Number of icons missing at the last check",
})

// DefaultSizes are the square icon sizes listed in the app manifest.
var DefaultSizes = []int{72, 96, 128, 144, 152, 192, 384, 512}

// DefaultManifestPath is where the app manifest is served.
const DefaultManifestPath = "/manifest.json"

// Config holds checker configuration.
type Config struct {
	// BaseURL is the origin the icons are served from (REQUIRED)
	BaseURL *url.URL

	// Sizes to check (default: DefaultSizes)
	Sizes []int

	// ManifestPath (default: DefaultManifestPath)
	ManifestPath string

	// Force runs the check against hosts other than localhost
	Force bool
}

// Report is the result of a check.
type Report struct {
	// Skipped is set when the host is not local and Force is off
	Skipped bool

	// Missing lists the sizes whose icon did not answer 2xx, in check order
	Missing []int

	// ManifestReachable reports whether the manifest answered 2xx
	ManifestReachable bool
}

// Installable reports whether nothing required for installation is missing.
func (r Report) Installable() bool {
	return !r.Skipped && len(r.Missing) == 0 && r.ManifestReachable
}

// Checker checks icon and manifest URLs with HEAD requests.
type Checker struct {
	client *http.Client
	config Config
	logger zerolog.Logger
}

// NewChecker creates a checker. A nil client uses http.DefaultClient.
func NewChecker(client *http.Client, cfg Config) (*Checker, error) {
	if cfg.BaseURL == nil || cfg.BaseURL.Host == "" {
		return nil, fmt.Errorf("base URL with scheme and host is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if len(cfg.Sizes) == 0 {
		cfg.Sizes = DefaultSizes
	}
	if cfg.ManifestPath == "" {
		cfg.ManifestPath = DefaultManifestPath
	}

	return &Checker{
		client: client,
		config: cfg,
		logger: logging.NewLogger(logging.ComponentIcons),
	}, nil
}

// IconPath returns the served path of the icon for size.
func IconPath(size int) string {
	return fmt.Sprintf("/images/icons/icon-%dx%d.png", size, size)
}

// IsLocal reports whether host is a development host.
func IsLocal(host string) bool {
	return host == "localhost" || strings.Contains(host, "127.0.0.1")
}

// Check requests every icon, then the manifest.
func (c *Checker) Check(ctx context.Context) Report {
	if !c.config.Force && !IsLocal(c.config.BaseURL.Hostname()) {
		c.logger.Debug().Str("host", c.config.BaseURL.Host).Msg("Skipping icon check on non-local host")
		return Report{Skipped: true}
	}

	c.logger.Info().Int("icons", len(c.config.Sizes)).Msg("Checking PWA icons")

	// A missing icon is a finding, not a failure; every HEAD runs to completion
	found := make([]bool, len(c.config.Sizes))
	var wg sync.WaitGroup
	for i, size := range c.config.Sizes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path := IconPath(size)
			if err := c.head(ctx, path); err != nil {
				c.logger.Warn().Err(err).Str("path", path).Msg("Icon missing, app may not be installable")
				return
			}
			c.logger.Debug().Str("path", path).Msg("Icon found")
			found[i] = true
		}()
	}
	wg.Wait()

	var report Report
	for i, ok := range found {
		if !ok {
			report.Missing = append(report.Missing, c.config.Sizes[i])
		}
	}
	iconsMissing.Set(float64(len(report.Missing)))

	if len(report.Missing) > 0 {
		c.logger.Warn().Ints("sizes", report.Missing).Msg("Icons required for installation are missing")
	} else {
		c.logger.Info().Msg("All icons present")
	}

	if err := c.head(ctx, c.config.ManifestPath); err != nil {
		c.logger.Warn().Err(err).Str("path", c.config.ManifestPath).Msg("Manifest not reachable, app will not be installable")
	} else {
		report.ManifestReachable = true
	}

	return report
}

func (c *Checker) head(ctx context.Context, path string) error {
	u := c.config.BaseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HEAD %s: status %d", path, resp.StatusCode)
	}
	return nil
}
