// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component names used in the "component" field.
const (
	ComponentController   = "offline-controller"
	ComponentRegistration = "registration"
	ComponentPrecache     = "precache"
	ComponentIcons        = "icons"
	ComponentInstall      = "installprompt"
	ComponentServer       = "server"
)

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache hits, bypassed requests, cached writes (key, bytes)
//   - Precache attempts per URL
//
// Info: Normal operation events
//   - Install completed (entries, duration)
//   - Activation and stale store deletion
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Network failed, offline page or placeholder served
//   - Cache lookup or write failures (request still answered)
//   - Precache retry attempts
//   - Missing icons
//
// Error: Error conditions requiring attention
//   - Install failed (previous version stays active)
//   - Activation failed
//   - Offline page missing from the cache
//   - Configuration errors
//
// Context Fields:
//   - cache: Store name (<prefix>-<version>)
//   - version: Controller version
//   - path: Request URL path
//   - key: Cache request key
//   - url: Precached URL
//   - error_class: Error classification (client, server, network)
//   - stale: Name of a store deleted on activation
//   - duration: Operation duration
