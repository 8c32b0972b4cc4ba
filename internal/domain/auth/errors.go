package auth

import "errors"

var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrUnauthorized      = errors.New("you do not have permission to perform this action")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrInvalidCronSecret = errors.New("invalid cron secret")
)
