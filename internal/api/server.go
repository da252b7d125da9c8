// Package api exposes reminders, adherence and metrics over HTTP
package api

import (
	"context"
	"time"

	"github.com/gmsas95/medremind/internal/adherence"
	"github.com/gmsas95/medremind/internal/alarm"
	"github.com/gmsas95/medremind/internal/config"
	"github.com/gmsas95/medremind/internal/metrics"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Deps are the server's collaborators
type Deps struct {
	Registry   *reminder.Registry
	Trigger    *alarm.Trigger
	Calculator *adherence.Calculator
	Metrics    *metrics.Metrics
	Clock      clockwork.Clock
	Logger     *zap.Logger
	Version    string
}

// Server handles the HTTP API
type Server struct {
	app        *fiber.App
	config     config.APIConfig
	registry   *reminder.Registry
	trigger    *alarm.Trigger
	calculator *adherence.Calculator
	metrics    *metrics.Metrics
	clock      clockwork.Clock
	logger     *zap.Logger
	version    string
}

// New creates a new API server
func New(cfg config.APIConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Default()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:        app,
		config:     cfg,
		registry:   deps.Registry,
		trigger:    deps.Trigger,
		calculator: deps.Calculator,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     deps.Logger,
		version:    deps.Version,
	}

	s.setupRoutes()
	return s
}

// App exposes the fiber app, mainly for app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address and blocks
func (s *Server) Start() error {
	s.logger.Info("HTTP API listening", zap.String("addr", s.config.Addr()))
	return s.app.Listen(s.config.Addr())
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
