package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInstant is returned when a date string is not an RFC 3339 instant.
	ErrInvalidInstant = errors.New("invalid instant")

	// ErrMissingOffset is returned for date-times without a UTC offset.
	ErrMissingOffset = errors.New("instant has no UTC offset")

	// ErrNonPositiveDuration is returned when an export duration is <= 0.
	ErrNonPositiveDuration = errors.New("duration must be positive")

	// ErrLineBreak is returned in strict mode for text containing CR or LF.
	ErrLineBreak = errors.New("text contains a line break")

	// ErrEventNotFound is returned when no record has the requested id.
	ErrEventNotFound = errors.New("event not found")
)

// ConfigurationError reports configuration that cannot be used, such as an
// unparseable event date. It is raised at load time, never mid-countdown.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError reports input rejected by a calendar export.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation: %s (%s): %v", e.Field, e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
