package attendance

import (
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
)

// Attendance domain errors
var (
	// Check-in / check-out errors
	ErrBlocked           = errors.New("attendance is locked for today")
	ErrAlreadyCheckedIn  = errors.New("you have already checked in today")
	ErrAlreadyCheckedOut = errors.New("you have already checked out today")
	ErrNotCheckedIn      = errors.New("you have not checked in yet")
	ErrNoRecord          = errors.New("no attendance record for today")

	// General errors
	ErrManagerScopeMissing = errors.New("manager department not set")
	ErrSweepInProgress     = errors.New("absence sweep already running for this date")
	ErrNotOverrideStatus   = errors.New("status is not an override status")

	// ErrStaleRecord is returned by guarded writes that matched no row.
	ErrStaleRecord = errors.New("attendance record changed concurrently")
)

// StateError reports a rejected transition together with the record's current status.
type StateError struct {
	Err    error
	Status Status
	Date   calendar.DayKey
}

func (e *StateError) Error() string {
	if e.Status == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (status %s)", e.Err.Error(), e.Status)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func newStateError(err error, a *Attendance) *StateError {
	se := &StateError{Err: err}
	if a != nil {
		se.Status = a.Status
		se.Date = a.Date
	}
	return se
}
