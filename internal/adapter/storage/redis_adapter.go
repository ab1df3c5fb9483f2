package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptKeyPrefix = "attempt:"
	attemptKeyTTL    = 24 * time.Hour
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// ConsumeAttempt claims a checkout attempt's outcome with SETNX. The raw
// outcome payload is stored as the value so a disputed charge can be traced
// back. Returns false if the attempt was claimed before.
func (r *RedisAdapter) ConsumeAttempt(ctx context.Context, attemptID string, payload []byte) (bool, error) {
	key := attemptKeyPrefix + attemptID
	value := payload
	if len(value) == 0 {
		value = []byte("consumed")
	}

	ok, err := r.client.SetNX(ctx, key, value, attemptKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReleaseAttempt drops the claim so the attempt can be consumed again.
func (r *RedisAdapter) ReleaseAttempt(ctx context.Context, attemptID string) error {
	return r.client.Del(ctx, attemptKeyPrefix+attemptID).Err()
}
