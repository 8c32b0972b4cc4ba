package employee

import "context"

// Directory is the employee directory attendance reads from.
type Directory interface {
	// GetProfile returns ErrEmployeeNotFound when the user does not exist.
	GetProfile(ctx context.Context, userID string) (Profile, error)

	// GetEmploymentTypes returns the known employment type per user id.
	// Users without a recorded type are absent from the map.
	GetEmploymentTypes(ctx context.Context, userIDs []string) (map[string]EmploymentType, error)

	// ListAttendanceEligible returns the ids of every user expected to record attendance.
	ListAttendanceEligible(ctx context.Context) ([]string, error)
}
