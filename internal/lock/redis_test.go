package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	mr, client := newTestRedis(t)
	ttl := 300 * time.Millisecond
	replicaA := NewRedisLocker(client, "booking:", ttl)
	replicaB := NewRedisLocker(client, "booking:", ttl)
	key := SlotKey("2025-03-12")

	held, unlock, err := replicaA.Lock(context.Background(), key)
	require.NoError(t, err)

	mr.FastForward(250 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL("booking:"+key) > 250*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond, "lease is renewed")

	mr.FastForward(250 * time.Millisecond)
	assert.True(t, mr.Exists("booking:"+key))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = replicaB.Lock(ctx, key)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.NoError(t, held.Err())

	unlock()
	assert.False(t, mr.Exists("booking:"+key))

	_, unlockB, err := replicaB.Lock(context.Background(), key)
	require.NoError(t, err)
	unlockB()
}

func TestRedisLocker_ExpiredLeaseEndsHolderContext(t *testing.T) {
	mr, client := newTestRedis(t)
	ttl := 300 * time.Millisecond
	replicaA := NewRedisLocker(client, "booking:", ttl)
	replicaB := NewRedisLocker(client, "booking:", ttl)
	key := SlotKey("2025-03-12")

	heldA, unlockA, err := replicaA.Lock(context.Background(), key)
	require.NoError(t, err)
	defer unlockA()

	// The key expires before the first renewal runs.
	mr.FastForward(ttl + 100*time.Millisecond)

	heldB, unlockB, err := replicaB.Lock(context.Background(), key)
	require.NoError(t, err)
	defer unlockB()

	require.Eventually(t, func() bool { return heldA.Err() != nil }, 2*time.Second, 10*time.Millisecond,
		"first holder must stop once the key belongs to someone else")
	assert.NoError(t, heldB.Err())

	unlockA()
	assert.True(t, mr.Exists("booking:"+key), "stale holder must not release the new lease")
}

func TestRedisLocker_DeletedKeyEndsHolderContext(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client, "booking:", 300*time.Millisecond)

	held, unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	mr.Del("booking:k")
	require.Eventually(t, func() bool { return held.Err() != nil }, 2*time.Second, 10*time.Millisecond)
}
