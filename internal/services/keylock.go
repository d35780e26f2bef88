package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// KeyedLock hands out one mutual-exclusion slot per key. Synthesis runs hold
// the slot for their whole duration; page mutations take it briefly so they
// cannot interleave with an in-flight run. Different keys never contend.
type KeyedLock struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*lockSlot
}

type lockSlot struct {
	sem  chan struct{}
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{slots: make(map[uuid.UUID]*lockSlot)}
}

func (l *KeyedLock) slot(key uuid.UUID) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &lockSlot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *KeyedLock) put(key uuid.UUID, s *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Acquire blocks until the key's slot is free or ctx is done. The returned
// release func must be called on all exit paths.
func (l *KeyedLock) Acquire(ctx context.Context, key uuid.UUID) (func(), error) {
	s := l.slot(key)
	select {
	case s.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.sem
				l.put(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.put(key, s)
		return nil, ctx.Err()
	}
}

// TryAcquire takes the slot without blocking; ok is false when the key is
// already held.
func (l *KeyedLock) TryAcquire(key uuid.UUID) (func(), bool) {
	s := l.slot(key)
	select {
	case s.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.sem
				l.put(key, s)
			})
		}, true
	default:
		l.put(key, s)
		return nil, false
	}
}
