package retry

import (
	"errors"
	"fmt"
	"strings"
)

// MultiError collects the error of every failed attempt
type MultiError struct {
	Errors   []error
	Attempts int
}

// Error reports the last failure
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "retry failed: no errors"
	}
	return fmt.Sprintf("retry failed after %d attempts: %v", e.Attempts, e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every attempt error to errors.Is / errors.As
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// AllErrors lists every attempt, one per line
func (e *MultiError) AllErrors() string {
	var b strings.Builder
	fmt.Fprintf(&b, "retry failed after %d attempts:", e.Attempts)
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  attempt %d: %v", i+1, err)
	}
	return b.String()
}

// GetAttempts returns the attempt count carried by err, or 0
func GetAttempts(err error) int {
	var me *MultiError
	if errors.As(err, &me) {
		return me.Attempts
	}
	return 0
}
