package security

import (
	"errors"
	"regexp"
)

type secretPattern struct {
	name       string
	regex      *regexp.Regexp
	redactWith string
}

// Bot API URLs embed the token, so transport errors from the Telegram
// client would otherwise leak it into logs.
var secretPatterns = []secretPattern{
	{"Telegram Bot URL", regexp.MustCompile(`/bot[0-9]{6,12}:[a-zA-Z0-9_-]{30,}`), "/bot****"},
	{"Telegram Bot Token", regexp.MustCompile(`[0-9]{8,10}:[a-zA-Z0-9_-]{35}`), "****:****"},
	{"Generic Secret", regexp.MustCompile(`(?i)(token|secret|password)(['"]?\s*[:=]\s*['"]?)[^\s'"]{8,}`), "${1}${2}****"},
}

// HasSecrets reports whether input contains something that looks like a credential
func HasSecrets(input string) bool {
	for _, p := range secretPatterns {
		if p.regex.MatchString(input) {
			return true
		}
	}
	return false
}

// RedactSecrets masks every credential found in input
func RedactSecrets(input string) string {
	result := input
	for _, p := range secretPatterns {
		result = p.regex.ReplaceAllString(result, p.redactWith)
	}
	return result
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

// RedactError returns err with credentials masked in its message. The
// original stays reachable through errors.Unwrap.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	redacted := RedactSecrets(msg)
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, cause: err}
}

// IsRedacted reports whether err went through RedactError and was changed
func IsRedacted(err error) bool {
	var r *redactedError
	return errors.As(err, &r)
}
