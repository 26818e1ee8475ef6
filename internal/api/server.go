package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/ecoledger/carbon-engine/internal/api/middleware"
	v1 "github.com/ecoledger/carbon-engine/internal/api/v1"
	"github.com/ecoledger/carbon-engine/internal/buildinfo"
	"github.com/ecoledger/carbon-engine/internal/errors"
	"github.com/ecoledger/carbon-engine/internal/logger"
)

// Server is the HTTP server of the engine.
type Server struct {
	echo       *echo.Echo
	config     *Config
	httpServer *http.Server
	log        logger.Logger

	service       v1.Service
	metrics       http.Handler
	build         *buildinfo.Context
	apiController *v1.Controller
	startTime     time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetricsHandler serves h at /metrics when metrics are enabled.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithBuildInfo reports the version on /healthz.
func WithBuildInfo(b *buildinfo.Context) ServerOption {
	return func(s *Server) { s.build = b }
}

// New creates a server for svc with the given configuration.
func New(cfg *Config, svc v1.Service, log logger.Logger, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = ConfigFromSettings(nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Server{
		config:    cfg,
		service:   svc,
		log:       logger.Or(log, "api"),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.echo,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, mw.Skip("/healthz", "/metrics")))
	if s.config.BodyLimit != "" {
		s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.health)
	if s.config.Metrics && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
	s.apiController = v1.New(s.echo, s.service, s.log)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.build.GetVersion(),
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", logger.String("address", s.config.Listen))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("address", s.config.Listen).
			Build()
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones up to the
// configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	s.log.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
