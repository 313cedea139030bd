// Package joblock provides a redis-backed mutex so that periodic jobs run on
// exactly one replica per tick.
package joblock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrHeld is returned when another process already holds the lock. Callers
// treat it as "this run belongs to someone else", not a failure.
var ErrHeld = errors.New("job lock held by another process")

// Deleting the key only when it still carries our token avoids releasing a
// lock that expired and was re-acquired elsewhere.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type Locker struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func New(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Locker{
		rdb: rdb,
		ttl: ttl,
		log: log.Named("joblock"),
	}
}

// WithLock runs fn while holding the named lock. If the lock is held
// elsewhere it returns ErrHeld without running fn.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	key := "tidyround:joblock:" + name
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}

	defer func() {
		if _, err := releaseScript.Run(context.WithoutCancel(ctx), l.rdb, []string{key}, token).Result(); err != nil {
			l.log.Warn("failed to release job lock", zap.String("job", name), zap.Error(err))
		}
	}()

	return fn(ctx)
}
