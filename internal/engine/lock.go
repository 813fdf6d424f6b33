package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AdvisoryLock guarantees exactly one engine run is active at a time
// through a Redis SETNX key with a TTL. The caller supplies the
// redis.Client; it is not pinged here.
type AdvisoryLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

func NewAdvisoryLock(client *redis.Client, key string, ttl time.Duration) *AdvisoryLock {
	return &AdvisoryLock{client: client, key: key, ttl: ttl}
}

// Acquire returns false, nil if another run currently holds the lock.
func (l *AdvisoryLock) Acquire(ctx context.Context, token string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("engine: acquire advisory lock: %w", err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release only clears the key if we still hold it, so a lock we lost to
// expiry cannot be stolen back from whoever holds it now.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	current, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: read advisory lock: %w", err)
	}
	if current != l.token {
		return nil
	}
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("engine: release advisory lock: %w", err)
	}
	return nil
}
