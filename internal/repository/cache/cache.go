package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "attendance:"

// getJSON loads key into target. It reports false on a cache miss.
func getJSON(ctx context.Context, rdb *redis.Client, key string, target interface{}) (bool, error) {
	cached, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(cached, target); err != nil {
		return false, err
	}
	return true, nil
}

func setJSON(ctx context.Context, rdb *redis.Client, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, data, ttl).Err()
}

func unmarshalProfile(raw string, cp *cachedProfile) error {
	return json.Unmarshal([]byte(raw), cp)
}
