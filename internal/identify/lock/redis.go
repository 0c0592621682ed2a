package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"unify/pkg/platform/sentinel"
)

const keyPrefix = "unify:identify:lock:"

// releaseScript deletes a lease only when the caller still owns it, so an
// expired lease taken over by another request is never removed.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker backed by redis SET NX PX leases, usable across
// multiple server instances. Leases expire after TTL so a crashed holder
// cannot wedge a fingerprint forever.
type RedisLocker struct {
	client     redis.Cmdable
	ttl        time.Duration
	retryEvery time.Duration
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets the lease duration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets how long to sleep between acquisition attempts.
func WithRetryInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryEvery = d
		}
	}
}

// NewRedisLocker constructs a redis-backed key locker.
func NewRedisLocker(client redis.Cmdable, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:     client,
		ttl:        10 * time.Second,
		retryEvery: 25 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *RedisLocker) Acquire(ctx context.Context, keys []string) (func(), error) {
	sorted := sortedUnique(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(sorted))

	for _, key := range sorted {
		if err := l.acquireOne(ctx, keyPrefix+key, token); err != nil {
			l.releaseAll(held, token)
			return nil, err
		}
		held = append(held, keyPrefix+key)
	}

	release := func() {
		l.releaseAll(held, token)
	}
	return release, nil
}

func (l *RedisLocker) acquireOne(ctx context.Context, key, token string) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w: %v", key, sentinel.ErrUnavailable, err)
		}
		if ok {
			return nil
		}
		select {
		case <-time.After(l.retryEvery):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *RedisLocker) releaseAll(held []string, token string) {
	// Best effort: an unreleased lease expires with its TTL.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		_ = releaseScript.Run(ctx, l.client, []string{held[i]}, token).Err()
	}
}
