package auth

import "github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"

// Identity is the verified caller extracted from the access token.
type Identity struct {
	UserID string
	Role   user.Role
}

func (i Identity) Can(p user.Permission) bool {
	return user.HasPermission(i.Role, p)
}
