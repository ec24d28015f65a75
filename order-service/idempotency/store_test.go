package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestStore_ReserveLifecycle(t *testing.T) {
	store, _ := setupStoreTest(t)
	ctx := context.Background()

	state, _, err := store.Reserve(ctx, "user-1", "key-1")
	if err != nil || state != StateReserved {
		t.Fatalf("Expected StateReserved, got %v (%v)", state, err)
	}

	state, _, err = store.Reserve(ctx, "user-1", "key-1")
	if err != nil || state != StateInFlight {
		t.Fatalf("Expected StateInFlight, got %v (%v)", state, err)
	}

	if err := store.Complete(ctx, "user-1", "key-1", 42); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	state, orderID, err := store.Reserve(ctx, "user-1", "key-1")
	if err != nil || state != StateCompleted {
		t.Fatalf("Expected StateCompleted, got %v (%v)", state, err)
	}
	if orderID != 42 {
		t.Errorf("Expected order 42, got %d", orderID)
	}
}

func TestStore_KeysAreScopedPerUser(t *testing.T) {
	store, _ := setupStoreTest(t)
	ctx := context.Background()

	if state, _, _ := store.Reserve(ctx, "user-1", "shared"); state != StateReserved {
		t.Fatalf("Expected StateReserved for user-1")
	}
	if state, _, _ := store.Reserve(ctx, "user-2", "shared"); state != StateReserved {
		t.Errorf("Expected StateReserved for user-2")
	}
}

func TestStore_ReleaseAllowsRetry(t *testing.T) {
	store, _ := setupStoreTest(t)
	ctx := context.Background()

	store.Reserve(ctx, "user-1", "key-1")
	if err := store.Release(ctx, "user-1", "key-1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if state, _, _ := store.Reserve(ctx, "user-1", "key-1"); state != StateReserved {
		t.Errorf("Expected key to be reservable after release")
	}
}

func TestStore_KeysExpire(t *testing.T) {
	store, mr := setupStoreTest(t)
	ctx := context.Background()

	store.Reserve(ctx, "user-1", "key-1")
	store.Complete(ctx, "user-1", "key-1", 7)

	if ttl := mr.TTL("idempotency:user-1:key-1"); ttl != time.Hour {
		t.Errorf("Expected TTL of 1h, got %v", ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	if state, _, _ := store.Reserve(ctx, "user-1", "key-1"); state != StateReserved {
		t.Errorf("Expected expired key to be reservable")
	}
}
