package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"leadcall_backend/internal/jobs"
	"leadcall_backend/platform/logger"
)

// DueLeadLister finds leads whose retry time has passed.
type DueLeadLister interface {
	ListDueForRetry(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// SelfHeal reschedules retry jobs for leads that are due but have no
// pending job, which happens when a crash landed between recording an
// outcome and enqueueing the retry. The singleton constraint makes the
// re-enqueue a no-op for leads whose job survived.
func SelfHeal(ctx context.Context, leads DueLeadLister, store JobClaimer, log *logger.Logger) error {
	due, err := leads.ListDueForRetry(ctx, time.Now())
	if err != nil {
		return err
	}

	healed := 0
	for _, leadID := range due {
		err := store.Enqueue(ctx, jobs.NewRetry(leadID, time.Now()))
		if errors.Is(err, jobs.ErrDuplicate) {
			continue
		}
		if err != nil {
			log.Warn("self-heal enqueue failed", "lead_id", leadID.String(), "error", err.Error())
			continue
		}
		healed++
	}

	if healed > 0 {
		log.Info("rescheduled orphaned retries", "count", healed)
	}
	return nil
}

// Healer runs SelfHeal at startup and then periodically, bounding how
// long a lead can sit due with no pending job.
type Healer struct {
	leads    DueLeadLister
	store    JobClaimer
	interval time.Duration
	log      *logger.Logger
}

func NewHealer(leads DueLeadLister, store JobClaimer, interval time.Duration, log *logger.Logger) *Healer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Healer{leads: leads, store: store, interval: interval, log: log}
}

func (h *Healer) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if err := SelfHeal(ctx, h.leads, h.store, h.log); err != nil {
			h.log.Warn("self-heal failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
