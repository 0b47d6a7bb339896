package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBacking is the shared state behind a MemoryStore. Keeping it
// separate from the store lets tests simulate a process restart by
// opening a fresh MemoryStore over the same backing.
type MemoryBacking struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]Job
}

// NewMemoryBacking creates empty shared state.
func NewMemoryBacking() *MemoryBacking {
	return &MemoryBacking{jobs: make(map[uuid.UUID]Job)}
}

// MemoryStore is an in-memory Store used in tests. It applies the same
// singleton and claim semantics as the PostgreSQL repository.
type MemoryStore struct {
	backing *MemoryBacking
}

// NewMemoryStore opens a store over the given backing.
func NewMemoryStore(backing *MemoryBacking) *MemoryStore {
	return &MemoryStore{backing: backing}
}

func (s *MemoryStore) Enqueue(_ context.Context, job Job) error {
	s.backing.mu.Lock()
	defer s.backing.mu.Unlock()
	if job.Kind.Singleton() {
		for _, existing := range s.backing.jobs {
			if existing.LeadID == job.LeadID && existing.Kind == job.Kind {
				return ErrDuplicate
			}
		}
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	s.backing.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]Job, error) {
	s.backing.mu.Lock()
	defer s.backing.mu.Unlock()

	var due []Job
	for _, job := range s.backing.jobs {
		if !job.RunAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for _, job := range due {
		delete(s.backing.jobs, job.ID)
	}
	return due, nil
}

func (s *MemoryStore) Cancel(_ context.Context, leadID uuid.UUID, kind Kind) error {
	s.backing.mu.Lock()
	defer s.backing.mu.Unlock()
	for id, job := range s.backing.jobs {
		if job.LeadID == leadID && job.Kind == kind {
			delete(s.backing.jobs, id)
		}
	}
	return nil
}

func (s *MemoryStore) CancelByLead(_ context.Context, leadID uuid.UUID) error {
	s.backing.mu.Lock()
	defer s.backing.mu.Unlock()
	for id, job := range s.backing.jobs {
		if job.LeadID == leadID {
			delete(s.backing.jobs, id)
		}
	}
	return nil
}

func (s *MemoryStore) CancelBySchedule(_ context.Context, scheduleID uuid.UUID) (int64, error) {
	s.backing.mu.Lock()
	defer s.backing.mu.Unlock()
	var removed int64
	for id, job := range s.backing.jobs {
		if job.ScheduleID != nil && *job.ScheduleID == scheduleID {
			delete(s.backing.jobs, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]Job, error) {
	s.backing.mu.Lock()
	defer s.backing.mu.Unlock()
	out := make([]Job, 0, len(s.backing.jobs))
	for _, job := range s.backing.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
