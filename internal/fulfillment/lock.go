package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another worker holds the order's lock.
var ErrLocked = errors.New("fulfillment already in progress for this order")

// Locker provides short-lived mutual exclusion per order.
type Locker interface {
	// Acquire takes key for ttl.  The returned release func must be
	// called once the work is done.  ErrLocked reports contention.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// NoopLocker never blocks.  It is used when Redis is unavailable; the
// per-unit unique key still prevents duplicate tickets.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

// releaseScript deletes the key only when it still holds our token so an
// expired lock re-taken by another worker is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	rdb      *redis.Client
	prefix   string
	newToken func() string
}

// NewRedisLocker returns a Locker backed by rdb, or a NoopLocker when rdb
// is nil.
func NewRedisLocker(rdb *redis.Client, prefix string) Locker {
	if rdb == nil {
		return NoopLocker{}
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, newToken: uuid.NewString}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	full := l.prefix + ":" + key
	token := l.newToken()
	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// The caller's ctx may already be done; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{full}, token).Err()
	}, nil
}
