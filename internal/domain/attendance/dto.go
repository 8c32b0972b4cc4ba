package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/validator"
)

// ========================================
// REQUEST DTOs
// ========================================

type CheckInRequest struct {
	UserID   string `json:"-" validate:"required"`
	WorkMode string `json:"work_mode" validate:"omitempty,oneof=OFFICE REMOTE"`
}

// Validate normalizes work_mode. An empty work_mode means OFFICE.
func (r *CheckInRequest) Validate() error {
	r.WorkMode = strings.ToUpper(strings.TrimSpace(r.WorkMode))
	return validator.Struct(r)
}

func (r CheckInRequest) Mode() WorkMode {
	if r.WorkMode == "" {
		return WorkModeOffice
	}
	return WorkMode(r.WorkMode)
}

type CheckOutRequest struct {
	UserID   string  `json:"-" validate:"required"`
	WorkMode *string `json:"work_mode,omitempty" validate:"omitempty,oneof=OFFICE REMOTE"`
}

// Validate normalizes work_mode. A missing work_mode keeps the mode chosen at check-in.
func (r *CheckOutRequest) Validate() error {
	if r.WorkMode != nil {
		mode := strings.ToUpper(strings.TrimSpace(*r.WorkMode))
		if mode == "" {
			r.WorkMode = nil
		} else {
			r.WorkMode = &mode
		}
	}
	return validator.Struct(r)
}

func (r CheckOutRequest) Mode() *WorkMode {
	if r.WorkMode == nil {
		return nil
	}
	mode := WorkMode(*r.WorkMode)
	return &mode
}

type SweepRequest struct {
	Date *string `json:"date,omitempty" validate:"omitempty,daykey"`
}

func (r *SweepRequest) Validate() error {
	if r.Date != nil && strings.TrimSpace(*r.Date) == "" {
		r.Date = nil
	}
	return validator.Struct(r)
}

type OverrideRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Date   string `json:"date" validate:"required,daykey"`
	Status string `json:"status" validate:"required,oneof=LEAVE HOLIDAY PUBLIC_HOLIDAY WEEKOFF"`
}

func (r *OverrideRequest) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Date = strings.TrimSpace(r.Date)
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
	return validator.Struct(r)
}

const (
	defaultPage     = 1
	defaultPageSize = 20
	StatusFilterAll = "ALL"
)

// ListFilter selects records between From and To inclusive.
type ListFilter struct {
	// Search & Filter
	From   string `json:"from" validate:"omitempty,daykey"` // YYYY-MM-DD, defaults to today
	To     string `json:"to" validate:"omitempty,daykey"`   // YYYY-MM-DD inclusive, defaults to today
	Status string `json:"status" validate:"omitempty,oneof=ALL PRESENT HALF_DAY ABSENT LEAVE HOLIDAY PUBLIC_HOLIDAY WEEKOFF"`
	Query  string `json:"q"` // name or email, case-insensitive
	UserID string `json:"user_id" validate:"omitempty,uuid"`

	// Scope, set by the caller
	UserIDs      []string `json:"-"`
	DepartmentID *string  `json:"-"`

	// Pagination
	Page     int `json:"page" validate:"min=0"`
	PageSize int `json:"page_size" validate:"min=0,max=100"`
}

func (f *ListFilter) Validate() error {
	f.Status = strings.ToUpper(strings.TrimSpace(f.Status))
	f.Query = strings.TrimSpace(f.Query)
	f.From = strings.TrimSpace(f.From)
	f.To = strings.TrimSpace(f.To)

	if err := validator.Struct(f); err != nil {
		return err
	}

	if f.Status == "" {
		f.Status = StatusFilterAll
	}
	if f.UserID != "" && f.UserIDs == nil {
		f.UserIDs = []string{f.UserID}
	}
	if f.Page == 0 {
		f.Page = defaultPage
	}
	if f.PageSize == 0 {
		f.PageSize = defaultPageSize
	}

	if f.From != "" && f.To != "" && f.From > f.To {
		return validator.ValidationErrors{{
			Field:   "to",
			Message: "to must not be before from",
		}}
	}
	return nil
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ========================================
// RESPONSE DTOs
// ========================================

type AttendanceResponse struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	UserName     *string  `json:"user_name,omitempty"`
	UserEmail    *string  `json:"user_email,omitempty"`
	Date         string   `json:"date"`
	CheckIn      *string  `json:"check_in,omitempty"`
	CheckOut     *string  `json:"check_out,omitempty"`
	WorkingHours *float64 `json:"working_hours,omitempty"`
	Status       string   `json:"status"`
	WorkMode     string   `json:"work_mode"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

type PolicyResponse struct {
	EmploymentType string  `json:"employment_type"`
	RequiredHours  float64 `json:"required_hours"`
	WorkedHours    float64 `json:"worked_hours"`
	Status         string  `json:"status"`
}

type CheckOutResponse struct {
	Attendance AttendanceResponse `json:"attendance"`
	Policy     PolicyResponse     `json:"policy"`
}

type TodayResponse struct {
	Date        string              `json:"date"`
	State       string              `json:"state"`
	CanCheckIn  bool                `json:"can_check_in"`
	CanCheckOut bool                `json:"can_check_out"`
	Attendance  *AttendanceResponse `json:"attendance"`
}

type SweepResponse struct {
	Date          string `json:"date"`
	CreatedAbsent int64  `json:"created_absent"`
	Updated       int    `json:"updated"`
	Skipped       string `json:"skipped,omitempty"`
}

type ListAttendanceResponse struct {
	TotalCount  int64                `json:"total_count"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	TotalPages  int                  `json:"total_pages"`
	Showing     string               `json:"showing"`
	From        string               `json:"from"`
	To          string               `json:"to"`
	Attendances []AttendanceResponse `json:"attendances"`
}

func formatInstant(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// ToResponse maps an entity to its API representation.
func ToResponse(a Attendance) AttendanceResponse {
	resp := AttendanceResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		UserName:  a.UserName,
		UserEmail: a.UserEmail,
		Date:      a.Date.String(),
		CheckIn:   formatInstant(a.CheckIn),
		CheckOut:  formatInstant(a.CheckOut),
		Status:    string(a.Status),
		WorkMode:  string(a.WorkMode),
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.WorkingHours.Valid {
		h := a.WorkingHours.Decimal.InexactFloat64()
		resp.WorkingHours = &h
	}
	return resp
}

func ToPolicyResponse(p PolicySummary) PolicyResponse {
	return PolicyResponse{
		EmploymentType: string(p.EmploymentType),
		RequiredHours:  p.RequiredHours.InexactFloat64(),
		WorkedHours:    p.WorkedHours.InexactFloat64(),
		Status:         string(p.Status),
	}
}

// Showing renders the "a-b of n" pagination label.
func Showing(page, limit int, total int64) string {
	from := (page - 1) * limit
	if from >= int(total) {
		return fmt.Sprintf("0 of %d", total)
	}
	return fmt.Sprintf("%d-%d of %d", (page-1)*limit+1, min(page*limit, int(total)), total)
}
