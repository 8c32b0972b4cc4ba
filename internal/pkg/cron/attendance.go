package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
)

// DefaultSweepSchedule runs the absence sweep shortly after midnight, business time.
const DefaultSweepSchedule = "15 0 * * *"

type AttendanceJobs struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceJobs(attendanceService attendance.AttendanceService) *AttendanceJobs {
	return &AttendanceJobs{attendanceService: attendanceService}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler, spec string) error {
	if spec == "" {
		spec = DefaultSweepSchedule
	}
	return scheduler.AddJob("mark_absent_employees", spec, j.MarkAbsentEmployees)
}

// MarkAbsentEmployees reconciles yesterday's attendance.
func (j *AttendanceJobs) MarkAbsentEmployees(ctx context.Context) error {
	slog.Info("Cron: Starting mark absent employees job")

	result, err := j.attendanceService.RunAbsenceSweep(ctx, attendance.SweepRequest{})
	if err != nil {
		if errors.Is(err, attendance.ErrSweepInProgress) {
			slog.Info("Cron: Absence sweep already running elsewhere, skipping")
			return nil
		}
		return fmt.Errorf("absence sweep: %w", err)
	}

	if result.Skipped != "" {
		slog.Info("Cron: Mark absent skipped", "date", result.Date, "reason", result.Skipped)
		return nil
	}

	slog.Info("Cron: Marked absent employees",
		"date", result.Date,
		"created_absent", result.CreatedAbsent,
		"updated", result.Updated,
	)
	return nil
}
