package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/idempotency"
)

type stubLocker struct {
	obtainFn func(key string) (database.Unlock, error)
}

func (s stubLocker) Obtain(_ context.Context, key string, _ time.Duration, _ time.Duration) (database.Unlock, error) {
	return s.obtainFn(key)
}

func TestIdempotencyCleanupPurgesInBatches(t *testing.T) {
	store := idempotency.NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		if _, err := store.Reserve(context.Background(), key, "fp", base, time.Minute); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if _, err := store.Reserve(context.Background(), "live", "fp", base, 48*time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}

	unlocked := false
	locker := stubLocker{obtainFn: func(key string) (database.Unlock, error) {
		if key != idempotencyCleanupLockKey {
			t.Fatalf("unexpected lock key %q", key)
		}
		return func(context.Context) error { unlocked = true; return nil }, nil
	}}

	job := NewIdempotencyCleanup(store, locker, 2, nil)
	job.clock = func() time.Time { return base.Add(time.Hour) }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !unlocked {
		t.Fatal("expected lock to be released")
	}
	res, err := store.Reserve(context.Background(), "live", "fp", base.Add(time.Hour), time.Minute)
	if err != nil || res.State != idempotency.ReservationStatePending {
		t.Fatalf("live key must survive cleanup, got %+v err=%v", res, err)
	}
	res, err = store.Reserve(context.Background(), "a", "other", base.Add(time.Hour), time.Minute)
	if err != nil || res.State != idempotency.ReservationStateNew {
		t.Fatalf("expired key should be gone, got %+v err=%v", res, err)
	}
}

func TestIdempotencyCleanupSkipsWhenLockHeld(t *testing.T) {
	locker := stubLocker{obtainFn: func(string) (database.Unlock, error) {
		return nil, database.ErrLockNotObtained
	}}
	job := NewIdempotencyCleanup(failingStore{}, locker, 10, nil)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected silent skip, got %v", err)
	}
}

func TestIdempotencyCleanupReportsStoreErrors(t *testing.T) {
	job := NewIdempotencyCleanup(failingStore{}, nil, 10, nil)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.Register("not a schedule", NewIdempotencyCleanup(idempotency.NewMemoryStore(), nil, 1, nil)); err == nil {
		t.Fatal("expected invalid spec error")
	}
	if err := s.Register("@every 1h", NewIdempotencyCleanup(idempotency.NewMemoryStore(), nil, 1, nil)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

type failingStore struct{ idempotency.Store }

func (failingStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, errors.New("boom")
}
