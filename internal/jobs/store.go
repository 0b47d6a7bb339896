package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists pending jobs.
type Store interface {
	// Enqueue adds a job. For singleton kinds it returns ErrDuplicate
	// when the lead already has a pending job of that kind.
	Enqueue(ctx context.Context, job Job) error

	// ClaimDue atomically removes and returns up to limit jobs with
	// run_at <= now. Concurrent callers never receive the same job.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error)

	// Cancel removes any pending job of the given kind for the lead.
	// Idempotent.
	Cancel(ctx context.Context, leadID uuid.UUID, kind Kind) error

	// CancelByLead removes every pending job for the lead. Idempotent.
	CancelByLead(ctx context.Context, leadID uuid.UUID) error

	// CancelBySchedule removes all not-yet-claimed jobs of a bulk
	// schedule and returns how many were removed.
	CancelBySchedule(ctx context.Context, scheduleID uuid.UUID) (int64, error)

	// ListPending returns all pending jobs ordered by run_at.
	ListPending(ctx context.Context) ([]Job, error)
}
