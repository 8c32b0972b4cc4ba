package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Rejected transitions carry the record's current status
	var details map[string]string
	var stateErr *attendance.StateError
	if errors.As(err, &stateErr) {
		details = stateDetails(stateErr)
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrUnauthenticated):
		Unauthorized(w, "Authentication required")
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, auth.ErrInvalidCronSecret):
		Unauthorized(w, "Invalid cron secret")
	case errors.Is(err, auth.ErrUnauthorized):
		Forbidden(w, "You do not have permission to perform this action")

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Attendance domain errors
	case errors.Is(err, attendance.ErrBlocked):
		Conflict(w, "Attendance is locked for today", details)
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		Conflict(w, "You have already checked in today", details)
	case errors.Is(err, attendance.ErrAlreadyCheckedOut):
		Conflict(w, "You have already checked out today", details)
	case errors.Is(err, attendance.ErrNotCheckedIn):
		BadRequest(w, "You have not checked in yet", details)
	case errors.Is(err, attendance.ErrNoRecord):
		BadRequest(w, "No attendance record for today", details)
	case errors.Is(err, attendance.ErrManagerScopeMissing):
		BadRequest(w, "Manager department not set", nil)
	case errors.Is(err, attendance.ErrNotOverrideStatus):
		BadRequest(w, "Status is not an override status", nil)
	case errors.Is(err, attendance.ErrSweepInProgress):
		Conflict(w, "Absence sweep already running for this date", nil)

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

func stateDetails(e *attendance.StateError) map[string]string {
	if e.Status == "" && e.Date == "" {
		return nil
	}
	details := make(map[string]string, 2)
	if e.Status != "" {
		details["status"] = string(e.Status)
	}
	if e.Date != "" {
		details["date"] = e.Date.String()
	}
	return details
}
