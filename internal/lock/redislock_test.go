package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestTryLockRunsCallback(t *testing.T) {
	l := Locker{R: testClient(t)}
	ran := false
	err := l.TryLock(context.Background(), "jobs:plan", time.Second, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("trylock failed: %v", err)
	}
	if !ran {
		t.Fatal("callback did not run")
	}
}

func TestTryLockHeldKey(t *testing.T) {
	client := testClient(t)
	l := Locker{R: client}
	if err := client.Set(context.Background(), "jobs:plan", "other-holder", time.Minute).Err(); err != nil {
		t.Fatal(err)
	}
	err := l.TryLock(context.Background(), "jobs:plan", time.Second, func(context.Context) error {
		t.Fatal("callback must not run while the key is held")
		return nil
	})
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
}

func TestLockReleasedAfterCallbackError(t *testing.T) {
	client := testClient(t)
	l := Locker{R: client}
	boom := errors.New("boom")
	if err := l.TryLock(context.Background(), "jobs:plan", time.Minute, func(context.Context) error {
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	// Key must be free again.
	if err := l.TryLock(context.Background(), "jobs:plan", time.Second, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("lock not released: %v", err)
	}
}
