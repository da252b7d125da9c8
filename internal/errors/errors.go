package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so wrapped variants of a
// sentinel still satisfy errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrInvalidReminder  = &AppError{Code: "REMINDER_001", Message: "invalid reminder"}
	ErrReminderPersist  = &AppError{Code: "REMINDER_002", Message: "reminder could not be persisted"}
	ErrReminderNotFound = &AppError{Code: "REMINDER_003", Message: "reminder not found"}

	ErrPresenterUnavailable = &AppError{Code: "PRESENT_001", Message: "alarm presenter unavailable"}
	ErrAlarmQueueFull       = &AppError{Code: "PRESENT_002", Message: "alarm queue full"}

	ErrStore = &AppError{Code: "STORE_001", Message: "storage failure"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Invalid returns ErrInvalidReminder's code with a specific reason.
func Invalid(reason string) *AppError {
	return &AppError{Code: ErrInvalidReminder.Code, Message: ErrInvalidReminder.Message + ": " + reason}
}
