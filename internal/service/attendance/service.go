package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/validator"
)

type AttendanceServiceImpl struct {
	txManager database.TxManager
	calendar  *calendar.Calendar
	attendance.AttendanceRepository
	employee.Directory
	locker    attendance.SweepLocker
	publisher attendance.EventPublisher
}

// CheckIn implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	today := a.calendar.Today()

	existing, err := a.AttendanceRepository.GetByUserAndDate(ctx, req.UserID, today)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
	}
	if err := attendance.GuardCheckIn(existing); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	now := a.calendar.Now()
	record, err := a.AttendanceRepository.CheckIn(ctx, attendance.Attendance{
		UserID:   req.UserID,
		Date:     today,
		CheckIn:  &now,
		Status:   attendance.StatusPresent,
		WorkMode: req.Mode(),
	})
	if err != nil {
		if errors.Is(err, attendance.ErrStaleRecord) {
			return attendance.AttendanceResponse{}, a.explainConflict(ctx, req.UserID, today, attendance.GuardCheckIn, attendance.ErrAlreadyCheckedIn)
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to check in: %w", err)
	}

	slog.Debug("attendance checked in", "user_id", req.UserID, "date", today.String(), "work_mode", string(record.WorkMode))

	resp := attendance.ToResponse(record)
	a.publish(attendance.Event{Type: attendance.EventCheckedIn, UserID: req.UserID, Date: today.String(), Data: resp})
	return resp, nil
}

// CheckOut implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) CheckOut(ctx context.Context, req attendance.CheckOutRequest) (attendance.CheckOutResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.CheckOutResponse{}, err
	}

	today := a.calendar.Today()

	existing, err := a.AttendanceRepository.GetByUserAndDate(ctx, req.UserID, today)
	if err != nil {
		return attendance.CheckOutResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
	}
	if err := attendance.GuardCheckOut(existing); err != nil {
		return attendance.CheckOutResponse{}, err
	}

	employmentType, err := a.employmentType(ctx, req.UserID)
	if err != nil {
		return attendance.CheckOutResponse{}, err
	}

	now := a.calendar.Now()
	summary := attendance.Evaluate(*existing.CheckIn, now, employmentType)

	record, err := a.AttendanceRepository.CheckOut(ctx, attendance.CheckOutUpdate{
		UserID:       req.UserID,
		Date:         today,
		CheckOut:     now,
		WorkingHours: summary.WorkedHours,
		Status:       summary.Status,
		WorkMode:     req.Mode(),
	})
	if err != nil {
		if errors.Is(err, attendance.ErrStaleRecord) {
			return attendance.CheckOutResponse{}, a.explainConflict(ctx, req.UserID, today, attendance.GuardCheckOut, attendance.ErrAlreadyCheckedOut)
		}
		return attendance.CheckOutResponse{}, fmt.Errorf("failed to check out: %w", err)
	}

	slog.Debug("attendance checked out",
		"user_id", req.UserID,
		"date", today.String(),
		"worked_hours", summary.WorkedHours.String(),
		"status", string(summary.Status),
	)

	resp := attendance.CheckOutResponse{
		Attendance: attendance.ToResponse(record),
		Policy:     attendance.ToPolicyResponse(summary),
	}
	a.publish(attendance.Event{Type: attendance.EventCheckedOut, UserID: req.UserID, Date: today.String(), Data: resp})
	return resp, nil
}

// GetToday implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) GetToday(ctx context.Context, userID string) (attendance.TodayResponse, error) {
	today := a.calendar.Today()

	existing, err := a.AttendanceRepository.GetByUserAndDate(ctx, userID, today)
	if err != nil {
		return attendance.TodayResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
	}

	resp := attendance.TodayResponse{
		Date:        today.String(),
		State:       string(attendance.StateOf(existing)),
		CanCheckIn:  attendance.GuardCheckIn(existing) == nil,
		CanCheckOut: attendance.GuardCheckOut(existing) == nil,
	}
	if existing != nil {
		r := attendance.ToResponse(*existing)
		resp.Attendance = &r
	}
	return resp, nil
}

// ListRange implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) ListRange(ctx context.Context, filter attendance.ListFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	today := a.calendar.Today().String()
	if filter.From == "" {
		filter.From = today
	}
	if filter.To == "" {
		filter.To = today
	}
	if filter.From > filter.To {
		return attendance.ListAttendanceResponse{}, validator.ValidationErrors{{
			Field:   "to",
			Message: "to must not be before from",
		}}
	}

	attendances, total, err := a.AttendanceRepository.List(ctx, filter)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list attendances: %w", err)
	}

	// Map to response
	responses := make([]attendance.AttendanceResponse, 0, len(attendances))
	for _, att := range attendances {
		responses = append(responses, attendance.ToResponse(att))
	}

	return attendance.ListAttendanceResponse{
		TotalCount:  total,
		Page:        filter.Page,
		Limit:       filter.PageSize,
		TotalPages:  int(math.Ceil(float64(total) / float64(filter.PageSize))),
		Showing:     attendance.Showing(filter.Page, filter.PageSize, total),
		From:        filter.From,
		To:          filter.To,
		Attendances: responses,
	}, nil
}

// SetOverride implements attendance.AttendanceService.
func (a *AttendanceServiceImpl) SetOverride(ctx context.Context, req attendance.OverrideRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	status := attendance.Status(req.Status)
	if !status.IsOverride() {
		return attendance.AttendanceResponse{}, attendance.ErrNotOverrideStatus
	}
	date, err := calendar.ParseDayKey(req.Date)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	if _, err := a.Directory.GetProfile(ctx, req.UserID); err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return attendance.AttendanceResponse{}, employee.ErrEmployeeNotFound
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get profile: %w", err)
	}

	record, err := a.AttendanceRepository.UpsertOverride(ctx, req.UserID, date, status)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to set override: %w", err)
	}

	slog.Info("attendance override set", "user_id", req.UserID, "date", date.String(), "status", req.Status)

	resp := attendance.ToResponse(record)
	a.publish(attendance.Event{Type: attendance.EventOverride, UserID: req.UserID, Date: date.String(), Data: resp})
	return resp, nil
}

// employmentType resolves the user's employment type. A missing profile is full-time.
func (a *AttendanceServiceImpl) employmentType(ctx context.Context, userID string) (employee.EmploymentType, error) {
	profile, err := a.Directory.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return employee.EmploymentTypeFullTime, nil
		}
		return "", fmt.Errorf("failed to get employment type: %w", err)
	}
	return profile.EmploymentType.Normalize(), nil
}

// explainConflict re-reads a record after a guarded write matched nothing
// and reports which guard the concurrent writer tripped.
func (a *AttendanceServiceImpl) explainConflict(ctx context.Context, userID string, date calendar.DayKey, guard func(*attendance.Attendance) error, fallback error) error {
	current, err := a.AttendanceRepository.GetByUserAndDate(ctx, userID, date)
	if err != nil {
		return fmt.Errorf("failed to reload attendance: %w", err)
	}
	if err := guard(current); err != nil {
		return err
	}
	se := &attendance.StateError{Err: fallback, Date: date}
	if current != nil {
		se.Status = current.Status
	}
	return se
}

func (a *AttendanceServiceImpl) publish(event attendance.Event) {
	if a.publisher == nil {
		return
	}
	a.publisher.Publish(event)
}

// NewAttendanceService builds the service. locker and publisher are optional.
func NewAttendanceService(
	txManager database.TxManager,
	cal *calendar.Calendar,
	attendanceRepo attendance.AttendanceRepository,
	directory employee.Directory,
	locker attendance.SweepLocker,
	publisher attendance.EventPublisher,
) attendance.AttendanceService {
	return &AttendanceServiceImpl{
		txManager:            txManager,
		calendar:             cal,
		AttendanceRepository: attendanceRepo,
		Directory:            directory,
		locker:               locker,
		publisher:            publisher,
	}
}
