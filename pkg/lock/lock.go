// Package lock serializes work on a shared key, in-process or across instances.
package lock

import (
	"context"
	"sync"
	"time"
)

// UnlockFunc releases a lock acquired by Locker.Lock.
type UnlockFunc func(ctx context.Context) error

// Locker acquires exclusive access to a key. Lock blocks until the lock is held or ctx is done.
// The ttl bounds how long a distributed lock survives a crashed holder; in-process
// implementations may ignore it.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process Locker. Entries are reference counted and dropped once unused.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string, _ time.Duration) (UnlockFunc, error) {
	e := l.acquire(key)

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key)

		return nil, ctx.Err()
	}

	var once sync.Once

	return func(context.Context) error {
		once.Do(func() {
			<-e.ch
			l.release(key)
		})

		return nil
	}, nil
}

func (l *Local) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}

	e.refs++

	return e
}

func (l *Local) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		return
	}

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
