// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"course-platform/internal/domain"
)

// Locker is a best-effort mutual exclusion primitive. Reconciliation does not
// depend on it for correctness (the status CAS does that); it only narrows
// the window where two paths both do provider round-trips for one purchase.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrAlreadyExists
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
