package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEnqueueSingletonRejectsSecondJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewMemoryBacking())
	leadID := uuid.New()

	if err := store.Enqueue(ctx, NewRetry(leadID, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	err := store.Enqueue(ctx, NewRetry(leadID, time.Now().Add(2*time.Hour)))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// A callback is a different singleton kind and may coexist with a
	// cancelled retry, but not with a pending one of its own kind.
	if err := store.Enqueue(ctx, NewCallback(leadID, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("callback enqueue: %v", err)
	}
	err = store.Enqueue(ctx, NewCallback(leadID, time.Now().Add(time.Hour)))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second callback, got %v", err)
	}
}

func TestEnqueueBatchSlotsAreNotSingleton(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewMemoryBacking())
	leadID := uuid.New()
	scheduleID := uuid.New()

	for i := 0; i < 2; i++ {
		if err := store.Enqueue(ctx, NewBatchSlot(leadID, scheduleID, i, time.Now())); err != nil {
			t.Fatalf("slot %d: %v", i, err)
		}
	}
}

func TestClaimDueRemovesClaimedJobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewMemoryBacking())
	now := time.Now()

	due := NewRetry(uuid.New(), now.Add(-time.Minute))
	future := NewRetry(uuid.New(), now.Add(time.Hour))
	if err := store.Enqueue(ctx, due); err != nil {
		t.Fatal(err)
	}
	if err := store.Enqueue(ctx, future); err != nil {
		t.Fatal(err)
	}

	claimed, err := store.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != due.ID {
		t.Fatalf("expected to claim only the due job, got %+v", claimed)
	}

	again, err := store.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("claimed job returned twice: %+v", again)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != future.ID {
		t.Fatalf("future job should still be pending, got %+v", pending)
	}
}

func TestClaimDueConcurrentClaimersNeverShareAJob(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryBacking()
	store := NewMemoryStore(backing)
	now := time.Now()

	const total = 50
	for i := 0; i < total; i++ {
		if err := store.Enqueue(ctx, NewRetry(uuid.New(), now.Add(-time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				claimed, err := store.ClaimDue(ctx, now, 5)
				if err != nil {
					t.Error(err)
					return
				}
				if len(claimed) == 0 {
					return
				}
				mu.Lock()
				for _, job := range claimed {
					seen[job.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("expected %d distinct jobs claimed, got %d", total, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("job %s claimed %d times", id, count)
		}
	}
}

func TestJobsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryBacking()
	now := time.Now()

	before := NewMemoryStore(backing)
	job := NewRetry(uuid.New(), now.Add(-time.Minute))
	if err := before.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}

	// A restart opens a fresh store over the same durable state.
	after := NewMemoryStore(backing)
	claimed, err := after.ClaimDue(ctx, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 1 || claimed[0].ID != job.ID {
		t.Fatalf("job lost across restart: %+v", claimed)
	}
	if more, _ := after.ClaimDue(ctx, now, 10); len(more) != 0 {
		t.Fatalf("job duplicated across restart: %+v", more)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewMemoryBacking())
	leadID := uuid.New()

	if err := store.Enqueue(ctx, NewRetry(leadID, time.Now().Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := store.Cancel(ctx, leadID, KindRetry); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := store.Cancel(ctx, leadID, KindRetry); err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	// The slot is free again after cancellation.
	if err := store.Enqueue(ctx, NewRetry(leadID, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("re-enqueue after cancel: %v", err)
	}
}

func TestCancelByScheduleRemovesOnlyThatSchedule(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(NewMemoryBacking())
	scheduleA := uuid.New()
	scheduleB := uuid.New()

	for i := 0; i < 3; i++ {
		if err := store.Enqueue(ctx, NewBatchSlot(uuid.New(), scheduleA, i, time.Now().Add(time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Enqueue(ctx, NewBatchSlot(uuid.New(), scheduleB, 0, time.Now().Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	removed, err := store.CancelBySchedule(ctx, scheduleA)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	pending, _ := store.ListPending(ctx)
	if len(pending) != 1 {
		t.Fatalf("schedule B jobs should remain, got %+v", pending)
	}
}
