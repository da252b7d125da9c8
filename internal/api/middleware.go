package api

import (
	"errors"

	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// errorHandler maps AppError codes onto HTTP statuses
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := apperrors.GetCode(err)

		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			status = fe.Code
		case errors.Is(err, apperrors.ErrInvalidReminder), errors.Is(err, apperrors.ErrBadRequest):
			status = fiber.StatusBadRequest
		case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrReminderNotFound):
			status = fiber.StatusNotFound
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error(), "code": code})
	}
}
