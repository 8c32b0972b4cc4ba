package attendance

import (
	"context"

	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
)

// AttendanceService defines business logic for attendance operations
type AttendanceService interface {
	// CheckIn records the caller's arrival for today
	CheckIn(ctx context.Context, req CheckInRequest) (AttendanceResponse, error)

	// CheckOut records the caller's departure and evaluates the day against policy
	CheckOut(ctx context.Context, req CheckOutRequest) (CheckOutResponse, error)

	// GetToday returns the caller's record and state for today
	GetToday(ctx context.Context, userID string) (TodayResponse, error)

	// RunAbsenceSweep reconciles one past day: fills absences and fixes completed records
	RunAbsenceSweep(ctx context.Context, req SweepRequest) (SweepResponse, error)

	// ListRange retrieves records in a day range with filters and pagination
	ListRange(ctx context.Context, filter ListFilter) (ListAttendanceResponse, error)

	// SetOverride applies an employer override status to a user's day
	SetOverride(ctx context.Context, req OverrideRequest) (AttendanceResponse, error)
}

// SweepLocker serializes sweeps of the same day across replicas.
type SweepLocker interface {
	// Acquire returns ErrSweepInProgress when another holder owns the day
	Acquire(ctx context.Context, date calendar.DayKey) (release func(), err error)
}

type EventType string

const (
	EventCheckedIn  EventType = "attendance.checked_in"
	EventCheckedOut EventType = "attendance.checked_out"
	EventOverride   EventType = "attendance.override"
	EventSweepDone  EventType = "attendance.sweep_completed"
)

// Event is a live notification of an attendance change.
type Event struct {
	Type   EventType   `json:"type"`
	UserID string      `json:"user_id,omitempty"`
	Date   string      `json:"date"`
	Data   interface{} `json:"data"`
}

// EventPublisher fans attendance events out to live subscribers. Publish must not block.
type EventPublisher interface {
	Publish(event Event)
}
