// Package api hosts the HTTP server. The JSON endpoints live in the v1
// subpackage.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/ecoledger/carbon-engine/internal/conf"
)

// Default constants for the HTTP server.
const (
	DefaultListen          = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute // interactive batches may take a while
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "10M"
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// BodyLimit caps request bodies, e.g. "10M".
	BodyLimit string
	// Metrics exposes /metrics.
	Metrics bool
}

// ConfigFromSettings builds a server Config, filling defaults.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := &Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
		Metrics:         true,
	}
	if settings == nil {
		return cfg
	}
	if settings.API.Listen != "" {
		cfg.Listen = settings.API.Listen
	}
	if settings.API.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = settings.API.ShutdownTimeout
	}
	cfg.Metrics = settings.API.Metrics
	return cfg
}

// Validate checks the listen address.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	return nil
}
