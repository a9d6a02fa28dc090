package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix        = "lock:item:"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
	defaultLockTTL       = 10 * time.Second
	lockRetryMin         = 5 * time.Millisecond
	lockRetryMax         = 100 * time.Millisecond
)

// releaseLockScript deletes the lock only if the caller still owns it, so an
// expired lock taken over by another process is never released by mistake.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAdapter provides the cross-process item lock and idempotency keys.
type RedisAdapter struct {
	client  *redis.Client
	lockTTL time.Duration
	keyTTL  time.Duration
}

type RedisOption func(*RedisAdapter)

// WithLockTTL caps how long a crashed holder can block an item.
func WithLockTTL(ttl time.Duration) RedisOption {
	return func(r *RedisAdapter) {
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

func WithIdempotencyTTL(ttl time.Duration) RedisOption {
	return func(r *RedisAdapter) {
		if ttl > 0 {
			r.keyTTL = ttl
		}
	}
}

func NewRedisAdapter(client *redis.Client, opts ...RedisOption) *RedisAdapter {
	r := &RedisAdapter{
		client:  client,
		lockTTL: defaultLockTTL,
		keyTTL:  idempotencyKeyTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisAdapter) Lock(ctx context.Context, itemID int64) (func(), error) {
	key := lockKeyPrefix + strconv.FormatInt(itemID, 10)
	token := uuid.NewString()

	wait := lockRetryMin
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, lockRetryMax)
	}

	return func() {
		// An unreleased lock expires after lockTTL; the version check in the
		// store still rejects stale writes.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		releaseLockScript.Run(releaseCtx, r.client, []string{key}, token)
	}, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.keyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
