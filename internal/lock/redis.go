package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when ctx ends before the lock could be taken.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's expiry only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a single-instance Redis lock (SET NX PX plus a token-checked
// release). While held the lease is renewed every ttl/3; the TTL only bounds
// how long a crashed holder can block a key.
type RedisLocker struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
}

// NewRedisLocker creates a locker. Keys are namespaced with prefix.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, retryWait: 25 * time.Millisecond}
}

// TTL returns the lease length.
func (l *RedisLocker) TTL() time.Duration { return l.ttl }

// Lock implements Locker. The returned context is cancelled when a renewal
// finds the key gone or owned by someone else, or when Redis cannot be
// reached to renew it.
func (l *RedisLocker) Lock(ctx context.Context, key string) (context.Context, Unlock, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
			}
			return nil, nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-timer.C:
		}
	}

	held, lost := context.WithCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(fullKey, token, stop, lost)
	}()

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(stop)
			<-done
			lost()
			// Release must run even if the caller's context is already cancelled.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.client, []string{fullKey}, token).Err()
		})
	}, nil
}

// keepAlive renews the lease until stop is closed. Any failed renewal ends the
// lease, since the key may already belong to another holder.
func (l *RedisLocker) keepAlive(fullKey, token string, stop <-chan struct{}, lost context.CancelFunc) {
	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := renewScript.Run(rctx, l.client, []string{fullKey}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil || n == 0 {
				lost()
				return
			}
		}
	}
}

// NewRedisClient opens a client and verifies it with a short ping. It returns
// an error rather than nil so callers can fall back to the in-process lock.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}
