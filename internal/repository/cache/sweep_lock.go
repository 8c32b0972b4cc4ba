package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/calendar"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type sweepLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func sweepLockKey(date calendar.DayKey) string {
	return keyPrefix + "sweep:" + date.String()
}

// Acquire implements attendance.SweepLocker.
func (l *sweepLock) Acquire(ctx context.Context, date calendar.DayKey) (func(), error) {
	token := uuid.NewString()
	key := sweepLockKey(date)

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, attendance.ErrSweepInProgress
	}

	release := func() {
		// The request context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err(); err != nil {
			slog.Warn("failed to release sweep lock", "date", date.String(), "error", err)
		}
	}
	return release, nil
}

// NewSweepLock returns a lock that expires after ttl if never released.
func NewSweepLock(rdb *redis.Client, ttl time.Duration) attendance.SweepLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &sweepLock{rdb: rdb, ttl: ttl}
}
