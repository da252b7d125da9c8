// Package security checks user supplied text and keeps secrets out of logs
package security

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

var (
	ErrInputTooLarge     = errors.New("input exceeds maximum size")
	ErrNullByteDetected  = errors.New("null byte detected in input")
	ErrControlCharacter  = errors.New("control character in input")
	ErrInvalidUTF8       = errors.New("input is not valid UTF-8")
	ErrRepetitiveContent = errors.New("excessive repetition detected")
)

// InputValidator bounds free text such as medicine names and notes, which
// arrive from the CLI, the HTTP API and Telegram alike
type InputValidator struct {
	MaxSize       int
	MaxRepetition int
	AllowNewlines bool
}

// NewInputValidator returns limits suited to a short single-line field
func NewInputValidator() *InputValidator {
	return &InputValidator{
		MaxSize:       200,
		MaxRepetition: 20,
	}
}

// Validate returns nil or one of the Err* values
func (v *InputValidator) Validate(input string) error {
	if v.MaxSize > 0 && len(input) > v.MaxSize {
		return ErrInputTooLarge
	}
	if !utf8.ValidString(input) {
		return ErrInvalidUTF8
	}

	for _, r := range input {
		if r == 0 {
			return ErrNullByteDetected
		}
		if r == '\n' && v.AllowNewlines {
			continue
		}
		if unicode.IsControl(r) && r != '\t' {
			return ErrControlCharacter
		}
	}

	if v.MaxRepetition > 0 && hasExcessiveRepetition(input, v.MaxRepetition) {
		return ErrRepetitiveContent
	}
	return nil
}

func hasExcessiveRepetition(input string, maxLen int) bool {
	if len(input) <= maxLen {
		return false
	}

	runes := []rune(input)
	consecutiveCount := 1

	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			consecutiveCount++
			if consecutiveCount > maxLen {
				return true
			}
		} else {
			consecutiveCount = 1
		}
	}

	return false
}

var (
	fieldValidator = NewInputValidator()
	notesValidator = &InputValidator{MaxSize: 1000, MaxRepetition: 50, AllowNewlines: true}
)

// ValidateField checks a short single-line field and names it in the error
func ValidateField(name, value string) error {
	if err := fieldValidator.Validate(value); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// ValidateNotes checks a multi-line notes field
func ValidateNotes(value string) error {
	if err := notesValidator.Validate(value); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	return nil
}
