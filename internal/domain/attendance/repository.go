package attendance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
)

// CheckOutUpdate carries the computed completion of an open record.
type CheckOutUpdate struct {
	UserID       string
	Date         calendar.DayKey
	CheckOut     time.Time
	WorkingHours decimal.Decimal
	Status       Status
	WorkMode     *WorkMode // nil keeps the recorded mode
}

// AttendanceRepository defines data access methods for attendance records.
// Guarded writes return ErrStaleRecord when the row no longer satisfies their guard.
type AttendanceRepository interface {
	// GetByUserAndDate returns nil, nil when no record exists
	GetByUserAndDate(ctx context.Context, userID string, date calendar.DayKey) (*Attendance, error)

	// CheckIn inserts the record or fills check-in on an ABSENT row in one statement
	CheckIn(ctx context.Context, a Attendance) (Attendance, error)

	// CheckOut completes an open, non-blocked record
	CheckOut(ctx context.Context, u CheckOutUpdate) (Attendance, error)

	// ListByDate returns the records of the given users on one day
	ListByDate(ctx context.Context, date calendar.DayKey, userIDs []string) ([]Attendance, error)

	// BulkCreateAbsences inserts ABSENT rows, skipping users that already have a record. Returns rows inserted.
	BulkCreateAbsences(ctx context.Context, date calendar.DayKey, userIDs []string) (int64, error)

	// UpdateCompletion overwrites hours and status of a complete, non-blocked record
	UpdateCompletion(ctx context.Context, id string, hours decimal.Decimal, status Status) error

	// UpsertOverride sets an override status on the user's record for the day
	UpsertOverride(ctx context.Context, userID string, date calendar.DayKey, status Status) (Attendance, error)

	// List retrieves records with filters and pagination
	List(ctx context.Context, filter ListFilter) ([]Attendance, int64, error)
}
