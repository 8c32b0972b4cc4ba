package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/database"
)

const attendanceColumns = `
	a.id, a.user_id, a.date, a.check_in, a.check_out, a.working_hours,
	a.status, a.work_mode, a.created_at, a.updated_at`

type attendanceRepository struct {
	db *database.DB
}

// scanAttendance reads attendanceColumns followed by any extra destinations.
func scanAttendance(row pgx.Row, extra ...interface{}) (attendance.Attendance, error) {
	var (
		att      attendance.Attendance
		date     time.Time
		status   string
		workMode string
	)
	dest := []interface{}{
		&att.ID, &att.UserID, &date, &att.CheckIn, &att.CheckOut, &att.WorkingHours,
		&status, &workMode, &att.CreatedAt, &att.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return attendance.Attendance{}, err
	}
	att.Date = calendar.DayKeyFromStorage(date)
	att.Status = attendance.Status(status)
	att.WorkMode = attendance.WorkMode(workMode)
	return att, nil
}

func collectAttendances(rows pgx.Rows) ([]attendance.Attendance, error) {
	defer rows.Close()

	var attendances []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attendances, nil
}

// GetByUserAndDate implements attendance.AttendanceRepository.
func (r *attendanceRepository) GetByUserAndDate(ctx context.Context, userID string, date calendar.DayKey) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + attendanceColumns + `
		FROM attendances a
		WHERE a.user_id = $1 AND a.date = $2
		LIMIT 1
	`

	att, err := scanAttendance(q.QueryRow(ctx, query, userID, date.StorageInstant()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No existing attendance found
		}
		return nil, fmt.Errorf("failed to get attendance by user and date: %w", err)
	}

	return &att, nil
}

// CheckIn implements attendance.AttendanceRepository.
// An existing row is only claimed when it has no instants and is not overridden.
func (r *attendanceRepository) CheckIn(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	id, err := uuid.NewV7()
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to generate attendance id: %w", err)
	}

	query := `
		INSERT INTO attendances AS a (id, user_id, date, check_in, status, work_mode)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, date) DO UPDATE
		SET check_in = EXCLUDED.check_in,
			status = EXCLUDED.status,
			work_mode = EXCLUDED.work_mode,
			updated_at = NOW()
		WHERE a.check_in IS NULL
		  AND a.check_out IS NULL
		  AND NOT (a.status = ANY($7))
		RETURNING ` + attendanceColumns

	att, err := scanAttendance(q.QueryRow(ctx, query,
		id.String(),
		a.UserID,
		a.Date.StorageInstant(),
		a.CheckIn,
		string(a.Status),
		string(a.WorkMode),
		attendance.OverrideStatusStrings(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrStaleRecord
		}
		return attendance.Attendance{}, fmt.Errorf("failed to check in: %w", err)
	}

	return att, nil
}

// CheckOut implements attendance.AttendanceRepository.
func (r *attendanceRepository) CheckOut(ctx context.Context, u attendance.CheckOutUpdate) (attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	var workMode *string
	if u.WorkMode != nil {
		m := string(*u.WorkMode)
		workMode = &m
	}

	query := `
		UPDATE attendances AS a
		SET check_out = $1,
			working_hours = $2,
			status = $3,
			work_mode = COALESCE($4, a.work_mode),
			updated_at = NOW()
		WHERE a.user_id = $5
		  AND a.date = $6
		  AND a.check_in IS NOT NULL
		  AND a.check_out IS NULL
		  AND NOT (a.status = ANY($7))
		RETURNING ` + attendanceColumns

	att, err := scanAttendance(q.QueryRow(ctx, query,
		u.CheckOut,
		u.WorkingHours,
		string(u.Status),
		workMode,
		u.UserID,
		u.Date.StorageInstant(),
		attendance.OverrideStatusStrings(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrStaleRecord
		}
		return attendance.Attendance{}, fmt.Errorf("failed to check out: %w", err)
	}

	return att, nil
}

// ListByDate implements attendance.AttendanceRepository.
func (r *attendanceRepository) ListByDate(ctx context.Context, date calendar.DayKey, userIDs []string) ([]attendance.Attendance, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + attendanceColumns + `
		FROM attendances a
		WHERE a.date = $1 AND a.user_id = ANY($2::text[]::uuid[])
		ORDER BY a.user_id
	`

	rows, err := q.Query(ctx, query, date.StorageInstant(), userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendances by date: %w", err)
	}
	attendances, err := collectAttendances(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendances by date: %w", err)
	}
	return attendances, nil
}

// BulkCreateAbsences implements attendance.AttendanceRepository.
func (r *attendanceRepository) BulkCreateAbsences(ctx context.Context, date calendar.DayKey, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	q := GetQuerier(ctx, r.db)

	ids := make([]string, len(userIDs))
	for i := range userIDs {
		id, err := uuid.NewV7()
		if err != nil {
			return 0, fmt.Errorf("failed to generate attendance id: %w", err)
		}
		ids[i] = id.String()
	}

	query := `
		INSERT INTO attendances (id, user_id, date, status, work_mode)
		SELECT u.id, u.user_id, $1, $4, $5
		FROM unnest($2::text[]::uuid[], $3::text[]::uuid[]) AS u(id, user_id)
		ON CONFLICT (user_id, date) DO NOTHING
	`

	tag, err := q.Exec(ctx, query,
		date.StorageInstant(),
		ids,
		userIDs,
		string(attendance.StatusAbsent),
		string(attendance.WorkModeOffice),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create absences: %w", err)
	}

	return tag.RowsAffected(), nil
}

// UpdateCompletion implements attendance.AttendanceRepository.
func (r *attendanceRepository) UpdateCompletion(ctx context.Context, id string, hours decimal.Decimal, status attendance.Status) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE attendances
		SET working_hours = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		  AND check_in IS NOT NULL
		  AND check_out IS NOT NULL
		  AND NOT (status = ANY($4))
	`

	tag, err := q.Exec(ctx, query, id, hours, string(status), attendance.OverrideStatusStrings())
	if err != nil {
		return fmt.Errorf("failed to update attendance completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return attendance.ErrStaleRecord
	}

	return nil
}

// UpsertOverride implements attendance.AttendanceRepository.
func (r *attendanceRepository) UpsertOverride(ctx context.Context, userID string, date calendar.DayKey, status attendance.Status) (attendance.Attendance, error) {
	q := GetQuerier(ctx, r.db)

	id, err := uuid.NewV7()
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to generate attendance id: %w", err)
	}

	query := `
		INSERT INTO attendances AS a (id, user_id, date, status, work_mode)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, date) DO UPDATE
		SET status = EXCLUDED.status, updated_at = NOW()
		RETURNING ` + attendanceColumns

	att, err := scanAttendance(q.QueryRow(ctx, query,
		id.String(),
		userID,
		date.StorageInstant(),
		string(status),
		string(attendance.WorkModeOffice),
	))
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to set attendance override: %w", err)
	}

	return att, nil
}

// List implements attendance.AttendanceRepository.
// Count and page queries run concurrently outside transactions.
func (r *attendanceRepository) List(ctx context.Context, filter attendance.ListFilter) ([]attendance.Attendance, int64, error) {
	q := GetQuerier(ctx, r.db)

	from, err := calendar.ParseDayKey(filter.From)
	if err != nil {
		return nil, 0, err
	}
	to, err := calendar.ParseDayKey(filter.To)
	if err != nil {
		return nil, 0, err
	}

	// Build WHERE clause, to is inclusive
	baseWhere := "a.date >= $1 AND a.date < $2"
	args := []interface{}{from.StorageInstant(), to.AddDays(1).StorageInstant()}
	argIdx := 3

	// Status filter
	if filter.Status != "" && filter.Status != attendance.StatusFilterAll {
		baseWhere += fmt.Sprintf(" AND a.status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	// Name / email search
	if filter.Query != "" {
		baseWhere += fmt.Sprintf(" AND (u.name ILIKE $%d OR u.email ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+filter.Query+"%")
		argIdx++
	}

	// Scope
	if filter.UserIDs != nil {
		baseWhere += fmt.Sprintf(" AND a.user_id = ANY($%d::text[]::uuid[])", argIdx)
		args = append(args, filter.UserIDs)
		argIdx++
	}
	if filter.DepartmentID != nil {
		baseWhere += fmt.Sprintf(" AND e.department_id = $%d", argIdx)
		args = append(args, *filter.DepartmentID)
		argIdx++
	}

	fromClause := `
		FROM attendances a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN employees e ON e.user_id = a.user_id
		WHERE ` + baseWhere

	countQuery := `SELECT COUNT(*) ` + fromClause

	selectQuery := fmt.Sprintf(`
		SELECT %s, u.name, u.email, e.department_id
		%s
		ORDER BY a.date DESC, a.created_at DESC
		LIMIT $%d OFFSET $%d
	`, attendanceColumns, fromClause, argIdx, argIdx+1)
	pageArgs := append(append([]interface{}{}, args...), filter.PageSize, filter.Offset())

	var (
		total       int64
		attendances []attendance.Attendance
	)

	g, gctx := errgroup.WithContext(ctx)
	if _, inTx := ctx.Value(txKey{}).(pgx.Tx); inTx {
		g.SetLimit(1)
	}

	g.Go(func() error {
		if err := q.QueryRow(gctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count attendances: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		rows, err := q.Query(gctx, selectQuery, pageArgs...)
		if err != nil {
			return fmt.Errorf("failed to query attendances: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				name, email  string
				departmentID *string
			)
			att, err := scanAttendance(rows, &name, &email, &departmentID)
			if err != nil {
				return fmt.Errorf("failed to scan attendance: %w", err)
			}
			att.UserName = &name
			att.UserEmail = &email
			att.DepartmentID = departmentID
			attendances = append(attendances, att)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return attendances, total, nil
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}
