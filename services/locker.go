package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrLockHeld = errors.New("lock is held")

// Locker serializes work on a key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker holds locks as expiring Redis keys owned by a random token.
type RedisLocker struct {
	client *redis.Client
	prefix string
	log    *logrus.Entry
}

func NewRedisLocker(client *redis.Client, prefix string, log *logrus.Logger) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, log: log.WithField("component", "locker")}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return func() { l.release(fullKey, token) }, nil
}

// release deletes the key if token still owns it. A failure leaves the lock
// in place until its TTL expires.
func (l *RedisLocker) release(fullKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
		l.log.WithError(err).WithField("key", fullKey).Error("release lock")
	}
}

// MemoryLocker is a single-process Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time), clock: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, ErrLockHeld
	}
	until := now.Add(ttl)
	l.held[key] = until

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == until {
			delete(l.held, key)
		}
	}, nil
}
