package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
)

type cachedProfile struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Role           string  `json:"role"`
	EmploymentType string  `json:"employment_type"`
	DepartmentID   *string `json:"department_id,omitempty"`
}

// cachedDirectory is a read-through cache in front of another employee.Directory.
// Cache failures are logged and fall through to the wrapped directory.
type cachedDirectory struct {
	next employee.Directory
	rdb  *redis.Client
	ttl  time.Duration
}

func profileKey(userID string) string {
	return keyPrefix + "profile:" + userID
}

// GetProfile implements employee.Directory.
func (d *cachedDirectory) GetProfile(ctx context.Context, userID string) (employee.Profile, error) {
	var cp cachedProfile
	hit, err := getJSON(ctx, d.rdb, profileKey(userID), &cp)
	if err != nil {
		slog.Warn("profile cache read failed", "user_id", userID, "error", err)
	}
	if hit {
		return employee.Profile{
			UserID:         cp.UserID,
			Name:           cp.Name,
			Email:          cp.Email,
			Role:           user.Role(cp.Role),
			EmploymentType: employee.EmploymentType(cp.EmploymentType),
			DepartmentID:   cp.DepartmentID,
		}, nil
	}

	profile, err := d.next.GetProfile(ctx, userID)
	if err != nil {
		return employee.Profile{}, err
	}

	cp = cachedProfile{
		UserID:         profile.UserID,
		Name:           profile.Name,
		Email:          profile.Email,
		Role:           string(profile.Role),
		EmploymentType: string(profile.EmploymentType),
		DepartmentID:   profile.DepartmentID,
	}
	if err := setJSON(ctx, d.rdb, profileKey(userID), cp, d.ttl); err != nil {
		slog.Warn("profile cache write failed", "user_id", userID, "error", err)
	}

	return profile, nil
}

// GetEmploymentTypes implements employee.Directory.
// Cached profiles answer what they can; the rest is loaded in one batch.
func (d *cachedDirectory) GetEmploymentTypes(ctx context.Context, userIDs []string) (map[string]employee.EmploymentType, error) {
	types := make(map[string]employee.EmploymentType, len(userIDs))
	if len(userIDs) == 0 {
		return types, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = profileKey(id)
	}

	missing := userIDs
	values, err := d.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Warn("profile cache batch read failed", "count", len(keys), "error", err)
	} else {
		missing = nil
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				missing = append(missing, userIDs[i])
				continue
			}
			var cp cachedProfile
			if err := unmarshalProfile(raw, &cp); err != nil || cp.EmploymentType == "" {
				missing = append(missing, userIDs[i])
				continue
			}
			types[userIDs[i]] = employee.EmploymentType(cp.EmploymentType)
		}
	}

	if len(missing) == 0 {
		return types, nil
	}

	loaded, err := d.next.GetEmploymentTypes(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, t := range loaded {
		types[id] = t
	}

	return types, nil
}

// ListAttendanceEligible implements employee.Directory. Never cached.
func (d *cachedDirectory) ListAttendanceEligible(ctx context.Context) ([]string, error) {
	return d.next.ListAttendanceEligible(ctx)
}

// NewCachedDirectory wraps next with a Redis profile cache.
func NewCachedDirectory(next employee.Directory, rdb *redis.Client, ttl time.Duration) employee.Directory {
	return &cachedDirectory{next: next, rdb: rdb, ttl: ttl}
}
