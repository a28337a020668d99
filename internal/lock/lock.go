// Package lock serialises check-then-act sections keyed by a string, either
// inside one process or across replicas through Redis.
package lock

import (
	"context"
	"sync"
)

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

// Locker acquires an exclusive lock on key, blocking until it is free or ctx
// is done. The returned context is derived from ctx and is done as soon as
// the lock can no longer be relied on; work guarded by the lock must run on it.
type Locker interface {
	Lock(ctx context.Context, key string) (context.Context, Unlock, error)
}

// SlotKey is the lock key guarding the capacity of one venue day.
func SlotKey(day string) string {
	return "slot:" + day
}

// KeyedMutex is an in-process arena of mutexes, one per key. Entries are
// dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty arena.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock implements Locker.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (context.Context, Unlock, error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		held, cancel := context.WithCancel(ctx)
		var once sync.Once
		return held, func() {
			once.Do(func() {
				cancel()
				<-e.ch
				k.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, e)
		return nil, nil, ctx.Err()
	}
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// size returns the number of live entries.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
