package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"leadcall_backend/internal/bulk"
	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/platform/config"
	"leadcall_backend/platform/logger"
)

// SlotRecorder reports the dispatch result of a bulk schedule slot.
type SlotRecorder interface {
	RecordSlotResult(ctx context.Context, scheduleID, leadID uuid.UUID, status bulk.SlotStatus, slotErr *string) error
}

// Engager is the engine slice the worker needs.
type Engager interface {
	EngageLead(ctx context.Context, leadID uuid.UUID, opts engine.EngageOptions) error
}

// Worker consumes engage tasks off the conveyor. Its concurrency
// setting is the system-wide parallel call limit.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	engine Engager
	slots  SlotRecorder
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, eng Engager, slots SlotRecorder, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 5
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		engine: eng,
		slots:  slots,
		log:    log,
	}

	mux.HandleFunc(TaskEngageLead, w.handleEngageLead)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleEngageLead(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEngageLeadPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	// Batch slots always fire at their scheduled time; the lead's own
	// retry timing does not apply to them.
	forced := payload.Forced || payload.Kind == string(jobs.KindBatchSlot)

	engageErr := w.engine.EngageLead(ctx, leadID, engine.EngageOptions{Forced: forced})

	if payload.Kind == string(jobs.KindBatchSlot) && payload.ScheduleID != nil {
		w.recordSlot(ctx, payload, leadID, engageErr)
	}

	switch {
	case engageErr == nil:
		return nil
	case errors.Is(engageErr, engine.ErrAlreadyActive), errors.Is(engageErr, engine.ErrNotEligible):
		// The lead progressed through another path since this job was
		// scheduled. Nothing to do.
		return nil
	default:
		return engageErr
	}
}

func (w *Worker) recordSlot(ctx context.Context, payload EngageLeadPayload, leadID uuid.UUID, engageErr error) {
	scheduleID, err := uuid.Parse(*payload.ScheduleID)
	if err != nil {
		w.log.Warn("batch slot with malformed schedule id", "schedule_id", *payload.ScheduleID)
		return
	}

	var status bulk.SlotStatus
	var slotErr *string
	switch {
	case engageErr == nil:
		status = bulk.SlotDispatched
	case errors.Is(engageErr, engine.ErrAlreadyActive), errors.Is(engageErr, engine.ErrNotEligible):
		status = bulk.SlotSkipped
		msg := engageErr.Error()
		slotErr = &msg
	default:
		status = bulk.SlotFailed
		msg := engageErr.Error()
		slotErr = &msg
	}

	if err := w.slots.RecordSlotResult(ctx, scheduleID, leadID, status, slotErr); err != nil {
		w.log.Error("failed to record batch slot result",
			"schedule_id", scheduleID.String(),
			"lead_id", leadID.String(),
			"error", err.Error())
	}
}
