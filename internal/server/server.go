// Package server hosts the webhook routes and the auxiliary endpoints on
// one echo instance.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"truthline/internal/metrics"
)

// Registrar mounts its routes on the server.
type Registrar interface {
	Register(e *echo.Echo)
}

type Config struct {
	Addr      string
	AudioDir  string // served under /audio, empty disables
	BodyLimit string // e.g. "2M"
	Routes    []Registrar
	Logger    *slog.Logger
}

type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", v.URI,
				"status", v.Status,
				"duration_ms", v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(attrs, "err", v.Error)...)
				return nil
			}
			logger.Debug("request", attrs...)
			return nil
		},
	}))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	NewHealthHandler(logger).Register(e)
	e.GET("/metrics", echo.WrapHandler(metrics.Default.Handler()))
	if cfg.AudioDir != "" {
		e.Static("/audio", cfg.AudioDir)
	}
	for _, r := range cfg.Routes {
		if r != nil {
			r.Register(e)
		}
	}

	return &Server{echo: e, addr: cfg.Addr, logger: logger}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
