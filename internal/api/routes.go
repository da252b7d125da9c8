package api

import (
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func (s *Server) setupRoutes() {
	// Middleware
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "${status} - ${latency} ${method} ${path}\n",
		Output: zap.NewStdLog(s.logger).Writer(),
	}))

	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	// Reminders
	s.app.Get("/reminders", s.handleListReminders)
	s.app.Post("/reminders", s.handleCreateReminder)
	s.app.Get("/reminders/:id", s.handleGetReminder)
	s.app.Delete("/reminders/:id", s.handleDeleteReminder)
	s.app.Post("/reminders/:id/taken", s.handleTaken)
	s.app.Post("/reminders/:id/missed", s.handleMissed)
	s.app.Post("/reminders/:id/snooze", s.handleSnooze)

	// Statistics
	s.app.Get("/adherence", s.handleAdherence)
	s.app.Get("/history/daily", s.handleDailyHistory)
}
