package bulk

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"leadcall_backend/internal/events"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/platform/apperr"
	"leadcall_backend/platform/logger"
)

// ErrScheduleNotFound is returned for unknown schedule ids.
var ErrScheduleNotFound = errors.New("bulk schedule not found")

// Repository persists schedules and their per-lead slots.
type Repository interface {
	CreateSchedule(ctx context.Context, schedule Schedule, slots []Slot) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ListSchedules(ctx context.Context, limit int) ([]Schedule, error)
	GetProgress(ctx context.Context, id uuid.UUID) (*Progress, error)
	RecordSlotResult(ctx context.Context, scheduleID, leadID uuid.UUID, status SlotStatus, slotErr *string) error
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// JobScheduler is the slice of the job store the bulk scheduler needs.
type JobScheduler interface {
	Enqueue(ctx context.Context, job jobs.Job) error
	CancelBySchedule(ctx context.Context, scheduleID uuid.UUID) (int64, error)
}

// StartRequest is a validated bulk-call request.
type StartRequest struct {
	LeadIDs        []uuid.UUID
	RequestedStart time.Time
	ParallelCalls  int
	BatchInterval  time.Duration
}

// Service expands bulk requests into batch slot jobs.
type Service struct {
	repo Repository
	jobs JobScheduler
	bus  events.Bus
	log  *logger.Logger
}

// NewService creates the bulk scheduler service.
func NewService(repo Repository, jobStore JobScheduler, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, jobs: jobStore, bus: bus, log: log}
}

// Start validates the request, persists the schedule and enqueues one
// batch slot job per lead. Leads are called in input order, in waves
// of ParallelCalls spaced BatchInterval apart.
func (s *Service) Start(ctx context.Context, req StartRequest) (uuid.UUID, error) {
	if len(req.LeadIDs) == 0 {
		return uuid.Nil, apperr.Validation("bulk request needs at least one lead")
	}
	if req.ParallelCalls < 1 {
		return uuid.Nil, apperr.Validation("parallel_calls must be at least 1")
	}
	if req.BatchInterval < 0 {
		return uuid.Nil, apperr.Validation("batch_interval must not be negative")
	}

	start := req.RequestedStart
	if start.IsZero() {
		start = time.Now()
	}

	schedule := Schedule{
		ID:             uuid.New(),
		Status:         SchedulePending,
		RequestedStart: start,
		ParallelCalls:  req.ParallelCalls,
		BatchInterval:  req.BatchInterval,
		TotalLeads:     len(req.LeadIDs),
	}

	slots := make([]Slot, len(req.LeadIDs))
	for i, leadID := range req.LeadIDs {
		wave := WaveFor(i, req.ParallelCalls)
		slots[i] = Slot{
			ScheduleID: schedule.ID,
			LeadID:     leadID,
			SlotIndex:  i,
			Wave:       wave,
			RunAt:      RunAtFor(start, wave, req.BatchInterval),
			Status:     SlotScheduled,
		}
	}

	if err := s.repo.CreateSchedule(ctx, schedule, slots); err != nil {
		return uuid.Nil, err
	}

	for _, slot := range slots {
		job := jobs.NewBatchSlot(slot.LeadID, schedule.ID, slot.SlotIndex, slot.RunAt)
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			// Batch slots are not singleton; any failure here is
			// storage-level and recorded against the slot rather than
			// failing the whole batch.
			msg := err.Error()
			s.log.Error("batch slot enqueue failed",
				"schedule_id", schedule.ID.String(), "lead_id", slot.LeadID.String(), "error", msg)
			if recErr := s.repo.RecordSlotResult(ctx, schedule.ID, slot.LeadID, SlotFailed, &msg); recErr != nil {
				s.log.DatabaseError("record slot failure", recErr)
			}
		}
	}

	waves := Waves(len(req.LeadIDs), req.ParallelCalls)
	s.log.Info("bulk schedule created",
		"schedule_id", schedule.ID.String(),
		"total_leads", len(req.LeadIDs),
		"waves", waves,
	)
	s.bus.Publish(ctx, events.BulkScheduleStarted{
		BaseEvent:  events.NewBaseEvent(),
		ScheduleID: schedule.ID,
		TotalLeads: len(req.LeadIDs),
		Waves:      waves,
	})
	return schedule.ID, nil
}

// Cancel stops future dispatch for a schedule. Calls already handed to
// the provider are not recalled.
func (s *Service) Cancel(ctx context.Context, scheduleID uuid.UUID) error {
	cancelled, err := s.repo.MarkCancelled(ctx, scheduleID, time.Now())
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrScheduleNotFound
	}

	removed, err := s.jobs.CancelBySchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	s.log.Info("bulk schedule cancelled",
		"schedule_id", scheduleID.String(), "jobs_removed", removed)
	return nil
}

// Progress reports the observable state of a schedule.
func (s *Service) Progress(ctx context.Context, scheduleID uuid.UUID) (*Progress, error) {
	p, err := s.repo.GetProgress(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	p.Waves = Waves(p.Schedule.TotalLeads, p.Schedule.ParallelCalls)
	return p, nil
}

// List returns recent schedules.
func (s *Service) List(ctx context.Context, limit int) ([]Schedule, error) {
	return s.repo.ListSchedules(ctx, limit)
}

// RecordSlotResult is called by the dispatch worker with the outcome
// of one slot (dispatched, skipped because the lead was busy, or
// failed).
func (s *Service) RecordSlotResult(ctx context.Context, scheduleID, leadID uuid.UUID, status SlotStatus, slotErr *string) error {
	return s.repo.RecordSlotResult(ctx, scheduleID, leadID, status, slotErr)
}
