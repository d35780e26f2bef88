package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestKeyedLockSameKeyExcludes(t *testing.T) {
	l := NewKeyedLock()
	key := uuid.New()

	release, ok := l.TryAcquire(key)
	if !ok {
		t.Fatalf("first TryAcquire must succeed")
	}
	if _, ok := l.TryAcquire(key); ok {
		t.Fatalf("second TryAcquire on held key must fail")
	}
	release()
	// release is idempotent
	release()

	release2, ok := l.TryAcquire(key)
	if !ok {
		t.Fatalf("TryAcquire after release must succeed")
	}
	release2()
}

func TestKeyedLockDifferentKeysIndependent(t *testing.T) {
	l := NewKeyedLock()

	r1, ok := l.TryAcquire(uuid.New())
	if !ok {
		t.Fatalf("TryAcquire key1 failed")
	}
	defer r1()

	r2, ok := l.TryAcquire(uuid.New())
	if !ok {
		t.Fatalf("TryAcquire on an unrelated key must not contend")
	}
	defer r2()
}

func TestKeyedLockAcquireBlocksUntilReleased(t *testing.T) {
	l := NewKeyedLock()
	key := uuid.New()

	release, ok := l.TryAcquire(key)
	if !ok {
		t.Fatalf("TryAcquire failed")
	}

	acquired := make(chan struct{})
	go func() {
		r, err := l.Acquire(context.Background(), key)
		if err != nil {
			t.Errorf("Acquire: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatalf("Acquire must block while the key is held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("Acquire did not proceed after release")
	}
}

func TestKeyedLockAcquireHonorsContext(t *testing.T) {
	l := NewKeyedLock()
	key := uuid.New()

	release, _ := l.TryAcquire(key)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, key); err == nil {
		t.Fatalf("Acquire must fail when ctx expires while waiting")
	}
}
