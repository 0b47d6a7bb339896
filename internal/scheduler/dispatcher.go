package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"leadcall_backend/internal/jobs"
	"leadcall_backend/platform/config"
	"leadcall_backend/platform/logger"
)

// TaskEnqueuer puts engage tasks on the conveyor.
type TaskEnqueuer interface {
	EnqueueEngage(ctx context.Context, payload EngageLeadPayload) error
}

// JobClaimer is the durable queue slice the dispatcher needs.
type JobClaimer interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]jobs.Job, error)
	Enqueue(ctx context.Context, job jobs.Job) error
}

// Dispatcher polls the durable queue for due jobs and hands them to the
// conveyor. Claiming removes the job, so a dispatch that cannot reach
// the conveyor puts the job back rather than lose it.
type Dispatcher struct {
	client    TaskEnqueuer
	jobs      JobClaimer
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

func NewDispatcher(cfg config.SchedulerConfig, client TaskEnqueuer, store JobClaimer, log *logger.Logger) *Dispatcher {
	interval := cfg.GetDispatchInterval()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	batchSize := cfg.GetDispatchBatchSize()
	if batchSize < 1 {
		batchSize = 50
	}

	return &Dispatcher{
		client:    client,
		jobs:      store,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.jobs == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("job dispatcher started",
		"interval", d.interval.String(),
		"batch_size", d.batchSize)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("job dispatcher stopped")
			return
		case <-ticker.C:
		}

		d.dispatchDue(ctx)
	}
}

func (d *Dispatcher) dispatchDue(ctx context.Context) {
	claimed, err := d.jobs.ClaimDue(ctx, time.Now(), d.batchSize)
	if err != nil {
		d.log.Warn("job claim failed", "error", err.Error())
		return
	}
	if len(claimed) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(8)
	for _, job := range claimed {
		g.Go(func() error {
			d.dispatchJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) dispatchJob(ctx context.Context, job jobs.Job) {
	payload := EngageLeadPayload{
		LeadID:    job.LeadID.String(),
		Kind:      string(job.Kind),
		Forced:    job.Payload.Forced,
		SlotIndex: job.Payload.SlotIndex,
	}
	if job.ScheduleID != nil {
		id := job.ScheduleID.String()
		payload.ScheduleID = &id
	}

	if err := d.client.EnqueueEngage(ctx, payload); err != nil {
		d.log.Warn("conveyor enqueue failed, returning job to queue",
			"lead_id", job.LeadID.String(),
			"kind", string(job.Kind),
			"error", err.Error())
		if requeueErr := d.jobs.Enqueue(ctx, job); requeueErr != nil && !errors.Is(requeueErr, jobs.ErrDuplicate) {
			d.log.Error("failed to return job to queue",
				"lead_id", job.LeadID.String(),
				"kind", string(job.Kind),
				"error", requeueErr.Error())
		}
	}
}
