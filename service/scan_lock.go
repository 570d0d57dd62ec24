package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker enforces at-most-one concurrent clustering scan. Unlock must only
// be called after a successful TryLock.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// LocalLocker serializes scans within one process.
type LocalLocker struct {
	mu sync.Mutex
}

// NewLocalLocker creates an in-process scan lock.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) TryLock(_ context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalLocker) Unlock(_ context.Context) error {
	l.mu.Unlock()
	return nil
}

// unlockScript deletes the lock key only if it still holds our token, so an
// expired lock reacquired by another instance is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serializes scans across instances sharing one database. The
// lock expires after ttl so a crashed holder cannot block scans forever.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// NewRedisLocker creates a distributed scan lock.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if acquired {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return acquired, nil
}

func (l *RedisLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	return unlockScript.Run(ctx, l.client, []string{l.key}, token).Err()
}
