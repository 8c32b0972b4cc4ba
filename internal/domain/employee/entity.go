package employee

import (
	"strings"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
)

// Profile is the read-only projection of a user that attendance needs.
type Profile struct {
	UserID         string
	Name           string
	Email          string
	Role           user.Role
	EmploymentType EmploymentType
	DepartmentID   *string
}

type EmploymentType string

const (
	EmploymentTypeFullTime EmploymentType = "FULL_TIME"
	EmploymentTypePartTime EmploymentType = "PART_TIME"
	EmploymentTypeContract EmploymentType = "CONTRACT"
	EmploymentTypeIntern   EmploymentType = "INTERN"
)

// Normalize upper-cases the value and falls back to FULL_TIME when empty.
func (t EmploymentType) Normalize() EmploymentType {
	n := EmploymentType(strings.ToUpper(strings.TrimSpace(string(t))))
	if n == "" {
		return EmploymentTypeFullTime
	}
	return n
}
