package api

import (
	"strings"
	"time"

	"github.com/gmsas95/medremind/internal/adherence"
	"github.com/gmsas95/medremind/internal/alarm"
	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/reminder"
	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

type createReminderRequest struct {
	MedicineID    int64     `json:"medicine_id"`
	MedicineName  string    `json:"medicine_name"`
	Dose          string    `json:"dose"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Notes         string    `json:"notes"`
}

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

type adherenceResponse struct {
	MedicineID int64             `json:"medicine_id,omitempty"`
	Percentage float64           `json:"percentage"`
	Summary    adherence.Summary `json:"summary"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":          "healthy",
		"version":         s.version,
		"trigger_running": s.trigger != nil && s.trigger.IsRunning(),
		"pending":         s.registry.PendingCount(),
		"uptime_seconds":  int64(s.metrics.Uptime().Seconds()),
	})
}

func (s *Server) handleListReminders(c *fiber.Ctx) error {
	switch strings.ToLower(c.Query("status", "all")) {
	case "all":
		return c.JSON(s.registry.SortedByTime())
	case "pending":
		pending := s.registry.Pending()
		return c.JSON(pending)
	case "due":
		return c.JSON(s.registry.DueSorted(s.clock.Now()))
	default:
		return apperrors.New(apperrors.ErrBadRequest.Code, "status must be all, pending or due")
	}
}

func (s *Server) handleCreateReminder(c *fiber.Ctx) error {
	var req createReminderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrBadRequest.Code, "invalid request")
	}

	r, err := s.registry.Add(reminder.Reminder{
		MedicineID:    req.MedicineID,
		MedicineName:  req.MedicineName,
		Dose:          req.Dose,
		ScheduledTime: req.ScheduledTime,
		Notes:         req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

func (s *Server) reminderID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperrors.New(apperrors.ErrBadRequest.Code, "invalid reminder id")
	}
	return int64(id), nil
}

func (s *Server) handleGetReminder(c *fiber.Ctx) error {
	id, err := s.reminderID(c)
	if err != nil {
		return err
	}
	r, ok := s.registry.Get(id)
	if !ok {
		return apperrors.ErrReminderNotFound
	}
	return c.JSON(r)
}

func (s *Server) handleDeleteReminder(c *fiber.Ctx) error {
	id, err := s.reminderID(c)
	if err != nil {
		return err
	}
	if _, ok := s.registry.Get(id); !ok {
		return apperrors.ErrReminderNotFound
	}
	if !s.registry.Delete(id) {
		return apperrors.New(apperrors.ErrInternal.Code, "reminder could not be deleted")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleTaken(c *fiber.Ctx) error {
	return s.respond(c, alarm.Response{Action: alarm.ActionTaken})
}

func (s *Server) handleMissed(c *fiber.Ctx) error {
	return s.respond(c, alarm.Response{Action: alarm.ActionMissed})
}

func (s *Server) handleSnooze(c *fiber.Ctx) error {
	var req snoozeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.Wrap(err, apperrors.ErrBadRequest.Code, "invalid request")
		}
	}
	if req.Minutes < 0 {
		return apperrors.New(apperrors.ErrBadRequest.Code, "minutes must not be negative")
	}
	return s.respond(c, alarm.Response{Action: alarm.ActionSnooze, Minutes: req.Minutes})
}

// respond routes through the trigger so grace checks and history follow
func (s *Server) respond(c *fiber.Ctx, resp alarm.Response) error {
	id, err := s.reminderID(c)
	if err != nil {
		return err
	}
	if _, ok := s.registry.Get(id); !ok {
		return apperrors.ErrReminderNotFound
	}
	if !s.trigger.Respond(id, resp) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "reminder is not pending"})
	}
	r, _ := s.registry.Get(id)
	return c.JSON(r)
}

// dateRange reads from/to (YYYY-MM-DD), defaulting to the last seven days
func (s *Server) dateRange(c *fiber.Ctx) (adherence.Range, error) {
	r := s.calculator.ThisWeek()
	loc := s.calculator.Location()

	if from := c.Query("from"); from != "" {
		t, err := time.ParseInLocation(dateLayout, from, loc)
		if err != nil {
			return r, apperrors.New(apperrors.ErrBadRequest.Code, "from must be YYYY-MM-DD")
		}
		r.Start = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.ParseInLocation(dateLayout, to, loc)
		if err != nil {
			return r, apperrors.New(apperrors.ErrBadRequest.Code, "to must be YYYY-MM-DD")
		}
		r.End = t
	}
	return r, nil
}

func (s *Server) handleAdherence(c *fiber.Ctx) error {
	r, err := s.dateRange(c)
	if err != nil {
		return err
	}
	medicineID := int64(c.QueryInt("medicine_id", 0))

	pct, err := s.calculator.Percentage(medicineID, r.Start, r.End)
	if err != nil {
		return err
	}
	summary, err := s.calculator.SummarizeMedicine(medicineID, r)
	if err != nil {
		return err
	}
	return c.JSON(adherenceResponse{MedicineID: medicineID, Percentage: pct, Summary: summary})
}

func (s *Server) handleDailyHistory(c *fiber.Ctx) error {
	r, err := s.dateRange(c)
	if err != nil {
		return err
	}
	stats, err := s.calculator.DailyStatistics(r.Start, r.End)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
