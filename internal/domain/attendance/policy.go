package attendance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/employee"
)

var (
	fullTimeHours = decimal.NewFromInt(8)
	partTimeHours = decimal.NewFromInt(4)
	msPerHour     = decimal.NewFromInt(int64(time.Hour / time.Millisecond))
)

// PolicySummary is the outcome of evaluating a completed day.
type PolicySummary struct {
	EmploymentType employee.EmploymentType
	RequiredHours  decimal.Decimal
	WorkedHours    decimal.Decimal
	Status         Status
}

// RequiredHours returns the daily hours threshold. Unknown types use the full-time threshold.
func RequiredHours(t employee.EmploymentType) decimal.Decimal {
	if t.Normalize() == employee.EmploymentTypePartTime {
		return partTimeHours
	}
	return fullTimeHours
}

// WorkedHours returns the elapsed hours between the instants, clamped at zero and rounded to 2 places.
func WorkedHours(checkIn, checkOut time.Time) decimal.Decimal {
	elapsed := checkOut.Sub(checkIn)
	if elapsed <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(elapsed.Milliseconds()).Div(msPerHour).Round(2)
}

// ResolveStatus is inclusive at the threshold.
func ResolveStatus(worked, required decimal.Decimal) Status {
	if worked.GreaterThanOrEqual(required) {
		return StatusPresent
	}
	return StatusHalfDay
}

func Evaluate(checkIn, checkOut time.Time, t employee.EmploymentType) PolicySummary {
	t = t.Normalize()
	required := RequiredHours(t)
	worked := WorkedHours(checkIn, checkOut)
	return PolicySummary{
		EmploymentType: t,
		RequiredHours:  required,
		WorkedHours:    worked,
		Status:         ResolveStatus(worked, required),
	}
}
