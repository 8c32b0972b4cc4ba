package attendance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
)

type Status string

const (
	StatusPresent       Status = "PRESENT"
	StatusHalfDay       Status = "HALF_DAY"
	StatusAbsent        Status = "ABSENT"
	StatusLeave         Status = "LEAVE"
	StatusHoliday       Status = "HOLIDAY"
	StatusPublicHoliday Status = "PUBLIC_HOLIDAY"
	StatusWeekOff       Status = "WEEKOFF"
)

// OverrideStatuses are set by HR and freeze the record for the day.
var OverrideStatuses = []Status{StatusLeave, StatusHoliday, StatusPublicHoliday, StatusWeekOff}

// IsOverride reports whether s is an employer override that blocks check-in and check-out.
func (s Status) IsOverride() bool {
	for _, o := range OverrideStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// OverrideStatusStrings is OverrideStatuses as plain strings, for SQL array parameters.
func OverrideStatusStrings() []string {
	out := make([]string, len(OverrideStatuses))
	for i, s := range OverrideStatuses {
		out[i] = string(s)
	}
	return out
}

type WorkMode string

const (
	WorkModeOffice WorkMode = "OFFICE"
	WorkModeRemote WorkMode = "REMOTE"
)

type Attendance struct {
	ID           string
	UserID       string
	Date         calendar.DayKey
	CheckIn      *time.Time
	CheckOut     *time.Time
	WorkingHours decimal.NullDecimal
	Status       Status
	WorkMode     WorkMode
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// DTO / Join
	UserName     *string
	UserEmail    *string
	DepartmentID *string
}

// IsComplete reports whether both instants are recorded.
func (a *Attendance) IsComplete() bool {
	return a.CheckIn != nil && a.CheckOut != nil
}

// IsOpen reports whether exactly one instant is recorded.
func (a *Attendance) IsOpen() bool {
	return (a.CheckIn == nil) != (a.CheckOut == nil)
}
