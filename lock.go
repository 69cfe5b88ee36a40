package stockledger

import (
	"context"
	"sync"
)

// Locker serializes writers per item. Lock blocks until the key is held
// or ctx is done, and returns the function that releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LockerFunc adapts a function to Locker.
type LockerFunc func(ctx context.Context, key string) (func(), error)

// Lock implements Locker.
func (f LockerFunc) Lock(ctx context.Context, key string) (func(), error) {
	return f(ctx, key)
}

// itemKey is the lock key for one item in one branch.
func itemKey(branch, normalized string) string {
	return "stockledger:" + branch + "|" + normalized
}

// localLocker is a per-key mutex for a single process.
type localLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns a Locker that serializes callers in this process.
func NewLocalLocker() Locker {
	return &localLocker{slots: make(map[string]*lockSlot)}
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *localLocker) release(key string, s *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
