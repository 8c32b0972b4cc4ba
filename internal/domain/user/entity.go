package user

import "strings"

type Role string

const (
	RoleAdmin    Role = "ADMIN"    // Full access
	RoleHR       Role = "HR"       // People operations, may set overrides
	RoleFinance  Role = "FINANCE"  // Read-only roster access
	RoleManager  Role = "MANAGER"  // Roster access limited to own department
	RoleEmployee Role = "EMPLOYEE" // Regular employee, subject to absence sweep
)

// ParseRole normalizes a role claim. Unknown values return false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := RolePermissions[r]; !ok {
		return "", false
	}
	return r, true
}

// IsManager reports whether the role only sees its own department.
func (r Role) IsManager() bool {
	return r == RoleManager
}

// RequiresAttendance reports whether users with this role are expected to record attendance daily.
func (r Role) RequiresAttendance() bool {
	return r == RoleEmployee
}
