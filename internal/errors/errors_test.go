package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError(t *testing.T) {
	err := New("TEST_001", "test error")

	if err.Code != "TEST_001" {
		t.Errorf("expected code TEST_001, got %s", err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("expected message 'test error', got %s", err.Message)
	}
}

func TestAppErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := New("STORE_001", "save failed", cause)

	if err.Cause != cause {
		t.Errorf("expected cause to be set")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected error string to contain cause, got %s", err.Error())
	}
	if err.Unwrap() != cause {
		t.Errorf("expected unwrap to return cause")
	}
}

func TestIsAppError(t *testing.T) {
	wrapped := fmt.Errorf("adding: %w", Invalid("empty medicine name"))

	if !IsAppError(wrapped) {
		t.Error("expected IsAppError to see through wrapping")
	}
	if IsAppError(fmt.Errorf("standard error")) {
		t.Error("expected IsAppError to return false for standard error")
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(Invalid("missing time")) != "REMINDER_001" {
		t.Errorf("unexpected code %s", GetCode(Invalid("missing time")))
	}
	if GetCode(fmt.Errorf("standard error")) != "UNKNOWN" {
		t.Error("expected UNKNOWN for standard error")
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Invalid("missing time"))

	if !stderrors.Is(err, ErrInvalidReminder) {
		t.Error("expected errors.Is to match ErrInvalidReminder")
	}
	if stderrors.Is(err, ErrAlarmQueueFull) {
		t.Error("did not expect a match on a different code")
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("locked")
	err := Wrap(cause, ErrReminderPersist.Code, "save reminder 3")

	if err.Code != "REMINDER_002" {
		t.Errorf("expected code REMINDER_002, got %s", err.Code)
	}
	if !stderrors.Is(err, ErrReminderPersist) {
		t.Error("expected wrapped error to match its sentinel")
	}
}
