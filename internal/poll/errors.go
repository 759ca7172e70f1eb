package poll

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("poll timed out")

// TimeoutError is returned when no attempt succeeded within the budget.
type TimeoutError struct {
	Message  string
	Cause    error
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s after %d attempt(s) in %s", e.Message, e.Attempts, e.Elapsed.Round(time.Millisecond))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the error of the final attempt.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// CanceledError is returned when the caller's context ends between attempts.
type CanceledError struct {
	Err      error
	Cause    error
	Attempts int
}

func (e *CanceledError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("poll canceled after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("poll canceled after %d attempt(s): %v (last cause: %v)", e.Attempts, e.Err, e.Cause)
}

// Unwrap exposes both the context error and the last probe error.
func (e *CanceledError) Unwrap() []error {
	return []error{e.Err, e.Cause}
}
