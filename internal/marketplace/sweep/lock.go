package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker lets exactly one sweeper across processes run a tick. TryLock never blocks:
// ok is false when someone else holds the lock.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// NoopLocker always grants the lock. Used when only one process sweeps.
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context) (func(), bool, error) {
	return func() {}, true, nil
}

const DefaultLockKey = "neighborly:sweep:lock"

// releaseScript deletes the key only if it still holds our token, so a sweeper whose
// lease expired cannot release a lock that another sweeper has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease held in Redis with SET NX PX.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

type RedisLockerOption func(*RedisLocker)

func WithLockKey(key string) RedisLockerOption {
	return func(l *RedisLocker) {
		l.key = key
	}
}

func WithLockLogger(logger *slog.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker builds a lock whose lease lasts ttl. The ttl should be shorter than the
// sweep interval and longer than a typical tick.
func NewRedisLocker(client *redis.Client, ttl time.Duration, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		key:    DefaultLockKey,
		ttl:    ttl,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("set %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		if err := releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{l.key}, token).Err(); err != nil {
			// The lease still expires on its own.
			l.logger.WarnContext(ctx, "failed to release sweep lock", "key", l.key, "error", err)
		}
	}
	return release, true, nil
}
