package reconcile

import (
	"errors"
	"fmt"

	"github.com/roach88/tbaudit/internal/audit"
)

// ErrSourceUnavailable matches every *SourceUnavailableError via errors.Is.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrEmptyTaskID is returned when reconciliation is requested without a task.
var ErrEmptyTaskID = errors.New("task id is required")

// SourceUnavailableError reports that one side of the audit could not be
// read, including a read that exceeded its timeout. Callers may retry.
type SourceUnavailableError struct {
	// Side is the source that failed.
	Side audit.Side

	// TaskID is the task being audited.
	TaskID string

	// Err is the adapter's error.
	Err error
}

// Error implements the error interface.
func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s source unavailable for task %q: %v", e.Side, e.TaskID, e.Err)
}

// Unwrap returns the adapter's error.
func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSourceUnavailable) true.
func (e *SourceUnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// Retryable reports whether the call may succeed if repeated. Always true.
func (e *SourceUnavailableError) Retryable() bool {
	return true
}

// IsSourceUnavailable returns true if err is or wraps a SourceUnavailableError.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// UnavailableSide returns the failed side of a SourceUnavailableError, or ""
// if err is not one. Uses errors.As to handle wrapped errors.
func UnavailableSide(err error) audit.Side {
	var se *SourceUnavailableError
	if errors.As(err, &se) {
		return se.Side
	}
	return ""
}

// unavailable wraps err as a SourceUnavailableError for side, unless it
// already is one.
func unavailable(side audit.Side, taskID string, err error) error {
	var se *SourceUnavailableError
	if errors.As(err, &se) {
		return err
	}
	return &SourceUnavailableError{Side: side, TaskID: taskID, Err: err}
}
