// Package config holds the state shared by the CLI commands: loaded settings,
// build metadata, the central logger and the lazily built service.
package config

import (
	"strings"
	"sync"

	"github.com/ecoledger/carbon-engine/internal/buildinfo"
	"github.com/ecoledger/carbon-engine/internal/conf"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
	"github.com/ecoledger/carbon-engine/internal/service"
)

// Context is created once in main and handed to every command.
type Context struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	// Options select the config and env files; set from global flags.
	Options conf.LoadOptions
	// Debug forces debug logging regardless of the config.
	Debug bool

	mu      sync.Mutex
	central *logger.CentralLogger
	service *service.Service
}

// NewContext creates an unloaded context.
func NewContext(build *buildinfo.Context) *Context {
	return &Context{Build: build}
}

// Load reads settings and installs the central logger. Calling it again is a no-op.
func (c *Context) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Settings != nil {
		return nil
	}

	settings, err := conf.Load(c.Options)
	if err != nil {
		return err
	}
	if c.Debug || settings.Debug {
		settings.Debug = true
		applyDebugLogging(&settings.Logging)
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return errors.New(err).
			Component("config").
			Category(errors.CategoryConfiguration).
			Build()
	}
	logger.SetGlobal(central)

	c.Settings = settings
	c.central = central
	return nil
}

func applyDebugLogging(cfg *logger.LoggingConfig) {
	cfg.DefaultLevel = "debug"
	if cfg.Console != nil && !strings.EqualFold(cfg.Console.Level, "trace") {
		cfg.Console.Level = "debug"
	}
}

// Logger returns a module logger on the central logger.
func (c *Context) Logger(module string) logger.Logger {
	return logger.Global().Module(module)
}

// Service builds the service on first use. Load must have succeeded.
func (c *Context) Service() (*service.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.service != nil {
		return c.service, nil
	}
	if c.Settings == nil {
		return nil, errors.Newf("settings are not loaded").
			Component("config").
			Category(errors.CategoryState).
			Build()
	}

	svc, err := service.New(c.Settings, nil, service.WithBuildInfo(c.Build))
	if err != nil {
		return nil, err
	}
	c.service = svc
	return svc, nil
}

// Close releases the service and flushes logs.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.service != nil {
		errs = append(errs, c.service.Close())
		c.service = nil
	}
	if c.central != nil {
		errs = append(errs, c.central.Close())
		c.central = nil
	}
	return errors.Join(errs...)
}
