package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/database"
)

type employeeDirectoryImpl struct {
	db *database.DB
}

// GetProfile implements employee.Directory.
func (e *employeeDirectoryImpl) GetProfile(ctx context.Context, userID string) (employee.Profile, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT u.id, u.name, u.email, u.role, e.employment_type, e.department_id
		FROM users u
		LEFT JOIN employees e ON e.user_id = u.id
		WHERE u.id = $1
	`

	var (
		profile        employee.Profile
		role           string
		employmentType *string
	)
	err := q.QueryRow(ctx, query, userID).Scan(
		&profile.UserID, &profile.Name, &profile.Email, &role, &employmentType, &profile.DepartmentID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Profile{}, employee.ErrEmployeeNotFound
		}
		return employee.Profile{}, fmt.Errorf("failed to get profile for user %s: %w", userID, err)
	}

	profile.Role = user.Role(role)
	if employmentType != nil {
		profile.EmploymentType = employee.EmploymentType(*employmentType).Normalize()
	} else {
		profile.EmploymentType = employee.EmploymentTypeFullTime
	}

	return profile, nil
}

// GetEmploymentTypes implements employee.Directory.
func (e *employeeDirectoryImpl) GetEmploymentTypes(ctx context.Context, userIDs []string) (map[string]employee.EmploymentType, error) {
	types := make(map[string]employee.EmploymentType, len(userIDs))
	if len(userIDs) == 0 {
		return types, nil
	}
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT user_id, employment_type
		FROM employees
		WHERE user_id = ANY($1::text[]::uuid[]) AND employment_type IS NOT NULL
	`

	rows, err := q.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query employment types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, employmentType string
		if err := rows.Scan(&userID, &employmentType); err != nil {
			return nil, fmt.Errorf("failed to scan employment type: %w", err)
		}
		types[userID] = employee.EmploymentType(employmentType).Normalize()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return types, nil
}

// ListAttendanceEligible implements employee.Directory.
func (e *employeeDirectoryImpl) ListAttendanceEligible(ctx context.Context) ([]string, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT id FROM users WHERE role = $1 ORDER BY id`

	rows, err := q.Query(ctx, query, string(user.RoleEmployee))
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible users: %w", err)
	}

	userIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect eligible users: %w", err)
	}

	return userIDs, nil
}

func NewEmployeeDirectory(db *database.DB) employee.Directory {
	return &employeeDirectoryImpl{db: db}
}
