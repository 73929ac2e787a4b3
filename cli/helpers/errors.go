package helpers

import (
	"errors"
	"fmt"
)

// Define sentinel errors for common error types
var (
	// ErrTimeout represents a timeout error
	ErrTimeout = errors.New("operation timed out")

	// ErrNetwork represents a network error
	ErrNetwork = errors.New("network error")
)

// TimeoutError represents a timeout error with additional context
type TimeoutError struct {
	Operation string
	Duration  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %s", e.Operation, e.Duration)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(operation, duration string) error {
	return &TimeoutError{
		Operation: operation,
		Duration:  duration,
	}
}
