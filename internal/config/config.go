// Package config loads the proxy configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Backend selects where cache stores live.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Config holds everything the offline proxy reads from OFFLINE_* variables.
type Config struct {
	ListenAddr string `env:"OFFLINE_LISTEN_ADDR" envDefault:":8080"`
	Upstream   string `env:"OFFLINE_UPSTREAM"    envDefault:"http://localhost:4000"`

	Backend     Backend `env:"OFFLINE_BACKEND"      envDefault:"memory"`
	RedisAddr   string  `env:"OFFLINE_REDIS_ADDR"   envDefault:"localhost:6379"`
	RedisPrefix string  `env:"OFFLINE_REDIS_PREFIX" envDefault:"offline"`

	CachePrefix    string   `env:"OFFLINE_CACHE_PREFIX"    envDefault:"talent-cache"`
	Version        string   `env:"OFFLINE_VERSION"         envDefault:"v1"`
	BypassPatterns []string `env:"OFFLINE_BYPASS_PATTERNS" envDefault:"/live,/api/" envSeparator:","`
	SkipWaiting    bool     `env:"OFFLINE_SKIP_WAITING"    envDefault:"true"`

	LogLevel  string `env:"OFFLINE_LOG_LEVEL"  envDefault:"info"`
	LogPretty bool   `env:"OFFLINE_LOG_PRETTY" envDefault:"false"`
}

// Load parses the environment into a Config. Callers apply their
// overrides and then call Validate.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the values env parsing cannot.
func (c Config) Validate() error {
	if _, err := c.UpstreamURL(); err != nil {
		return err
	}
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("OFFLINE_REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (want memory or redis)", c.Backend)
	}
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("OFFLINE_VERSION must not be empty")
	}
	return nil
}

// UpstreamURL returns the parsed origin the proxy fronts.
func (c Config) UpstreamURL() (*url.URL, error) {
	u, err := url.Parse(c.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream %q must have scheme and host", c.Upstream)
	}
	return u, nil
}
