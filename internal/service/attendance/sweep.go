package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
)

// RunAbsenceSweep implements attendance.AttendanceService.
// The whole day is reconciled in one transaction: any failure rolls back every write.
func (a *AttendanceServiceImpl) RunAbsenceSweep(ctx context.Context, req attendance.SweepRequest) (attendance.SweepResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.SweepResponse{}, err
	}

	date := a.calendar.Today().Yesterday()
	if req.Date != nil {
		parsed, err := calendar.ParseDayKey(*req.Date)
		if err != nil {
			return attendance.SweepResponse{}, err
		}
		date = parsed
	}

	result := attendance.SweepResponse{Date: date.String()}
	if date.IsWeekend() {
		result.Skipped = string(attendance.StatusWeekOff)
		slog.Info("absence sweep skipped", "date", date.String(), "reason", result.Skipped)
		return result, nil
	}

	if a.locker != nil {
		release, err := a.locker.Acquire(ctx, date)
		switch {
		case errors.Is(err, attendance.ErrSweepInProgress):
			return attendance.SweepResponse{}, err
		case err != nil:
			// Writes are idempotent, the lock only avoids duplicate work
			slog.Warn("absence sweep running without lock", "date", date.String(), "error", err)
		default:
			defer release()
		}
	}

	err := a.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		created, updated, err := a.reconcileDay(txCtx, date)
		if err != nil {
			return err
		}
		result.CreatedAbsent = created
		result.Updated = updated
		return nil
	})
	if err != nil {
		slog.Error("absence sweep failed", "date", date.String(), "error", err)
		return attendance.SweepResponse{}, err
	}

	slog.Info("absence sweep completed",
		"date", result.Date,
		"created_absent", result.CreatedAbsent,
		"updated", result.Updated,
	)
	a.publish(attendance.Event{Type: attendance.EventSweepDone, Date: result.Date, Data: result})
	return result, nil
}

// reconcileDay fills absences and re-evaluates completed records of one day.
func (a *AttendanceServiceImpl) reconcileDay(ctx context.Context, date calendar.DayKey) (int64, int, error) {
	userIDs, err := a.Directory.ListAttendanceEligible(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list eligible users: %w", err)
	}
	if len(userIDs) == 0 {
		return 0, 0, nil
	}

	records, err := a.AttendanceRepository.ListByDate(ctx, date, userIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load attendances: %w", err)
	}

	// Gap fill
	hasRecord := make(map[string]struct{}, len(records))
	for _, r := range records {
		hasRecord[r.UserID] = struct{}{}
	}
	var missing []string
	for _, id := range userIDs {
		if _, ok := hasRecord[id]; !ok {
			missing = append(missing, id)
		}
	}

	created, err := a.AttendanceRepository.BulkCreateAbsences(ctx, date, missing)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create absences: %w", err)
	}

	// Completion fix-up; open and overridden records stay untouched
	var complete []attendance.Attendance
	for _, r := range records {
		if r.Status.IsOverride() || !r.IsComplete() {
			continue
		}
		complete = append(complete, r)
	}
	if len(complete) == 0 {
		return created, 0, nil
	}

	completeIDs := make([]string, len(complete))
	for i, r := range complete {
		completeIDs[i] = r.UserID
	}
	types, err := a.Directory.GetEmploymentTypes(ctx, completeIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get employment types: %w", err)
	}

	updated := 0
	for _, r := range complete {
		summary := attendance.Evaluate(*r.CheckIn, *r.CheckOut, types[r.UserID])
		if err := a.AttendanceRepository.UpdateCompletion(ctx, r.ID, summary.WorkedHours, summary.Status); err != nil {
			if errors.Is(err, attendance.ErrStaleRecord) {
				// Overridden since it was loaded
				slog.Debug("absence sweep skipped changed record", "user_id", r.UserID, "date", date.String())
				continue
			}
			return 0, 0, fmt.Errorf("failed to update attendance %s: %w", r.ID, err)
		}
		updated++
	}

	return created, updated, nil
}
