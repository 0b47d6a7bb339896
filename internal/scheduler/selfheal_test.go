package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadcall_backend/internal/jobs"
	"leadcall_backend/platform/logger"
)

type fakeDueLister struct {
	due []uuid.UUID
}

func (f *fakeDueLister) ListDueForRetry(context.Context, time.Time) ([]uuid.UUID, error) {
	return f.due, nil
}

func TestSelfHealReschedulesOrphanedRetries(t *testing.T) {
	store := jobs.NewMemoryStore(jobs.NewMemoryBacking())
	orphaned := uuid.New()
	covered := uuid.New()

	// covered still has its retry job; orphaned lost it in a crash.
	if err := store.Enqueue(context.Background(), jobs.NewRetry(covered, time.Now().Add(-time.Minute))); err != nil {
		t.Fatal(err)
	}

	lister := &fakeDueLister{due: []uuid.UUID{orphaned, covered}}
	if err := SelfHeal(context.Background(), lister, store, logger.New("development")); err != nil {
		t.Fatalf("self-heal: %v", err)
	}

	pending, err := store.ListPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected one job per due lead, got %d", len(pending))
	}

	byLead := map[uuid.UUID]int{}
	for _, job := range pending {
		byLead[job.LeadID]++
	}
	if byLead[orphaned] != 1 || byLead[covered] != 1 {
		t.Fatalf("unexpected job distribution: %v", byLead)
	}
}
