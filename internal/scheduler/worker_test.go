package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"leadcall_backend/internal/bulk"
	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/platform/logger"
)

type fakeEngager struct {
	err    error
	calls  []uuid.UUID
	forced []bool
}

func (f *fakeEngager) EngageLead(_ context.Context, leadID uuid.UUID, opts engine.EngageOptions) error {
	f.calls = append(f.calls, leadID)
	f.forced = append(f.forced, opts.Forced)
	return f.err
}

type fakeSlots struct {
	scheduleID uuid.UUID
	leadID     uuid.UUID
	status     bulk.SlotStatus
	slotErr    *string
	recorded   int
}

func (f *fakeSlots) RecordSlotResult(_ context.Context, scheduleID, leadID uuid.UUID, status bulk.SlotStatus, slotErr *string) error {
	f.recorded++
	f.scheduleID = scheduleID
	f.leadID = leadID
	f.status = status
	f.slotErr = slotErr
	return nil
}

func testWorker(eng Engager, slots SlotRecorder) *Worker {
	return &Worker{engine: eng, slots: slots, log: logger.New("development")}
}

func TestWorkerEngagesRetryJob(t *testing.T) {
	eng := &fakeEngager{}
	w := testWorker(eng, &fakeSlots{})

	leadID := uuid.New()
	task, err := NewEngageLeadTask(EngageLeadPayload{LeadID: leadID.String(), Kind: string(jobs.KindRetry)})
	if err != nil {
		t.Fatal(err)
	}

	if err := w.handleEngageLead(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(eng.calls) != 1 || eng.calls[0] != leadID {
		t.Fatalf("engine not called for lead: %v", eng.calls)
	}
	if eng.forced[0] {
		t.Fatal("retry job must respect the timing gate")
	}
}

func TestWorkerForcesBatchSlots(t *testing.T) {
	eng := &fakeEngager{}
	slots := &fakeSlots{}
	w := testWorker(eng, slots)

	leadID := uuid.New()
	scheduleID := uuid.New().String()
	task, err := NewEngageLeadTask(EngageLeadPayload{
		LeadID:     leadID.String(),
		Kind:       string(jobs.KindBatchSlot),
		ScheduleID: &scheduleID,
		SlotIndex:  2,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := w.handleEngageLead(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !eng.forced[0] {
		t.Fatal("batch slot must bypass the timing gate")
	}
	if slots.recorded != 1 || slots.status != bulk.SlotDispatched {
		t.Fatalf("expected dispatched slot result, got %d records status %s", slots.recorded, slots.status)
	}
}

func TestWorkerRecordsSkippedSlotForActiveLead(t *testing.T) {
	eng := &fakeEngager{err: engine.ErrAlreadyActive}
	slots := &fakeSlots{}
	w := testWorker(eng, slots)

	scheduleID := uuid.New().String()
	task, err := NewEngageLeadTask(EngageLeadPayload{
		LeadID:     uuid.New().String(),
		Kind:       string(jobs.KindBatchSlot),
		ScheduleID: &scheduleID,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := w.handleEngageLead(context.Background(), task); err != nil {
		t.Fatalf("busy lead must not fail the task: %v", err)
	}
	if slots.status != bulk.SlotSkipped {
		t.Fatalf("expected skipped slot, got %s", slots.status)
	}
	if slots.slotErr == nil {
		t.Fatal("skipped slot should carry the reason")
	}
}

func TestWorkerSwallowsIneligibleRetry(t *testing.T) {
	eng := &fakeEngager{err: engine.ErrNotEligible}
	w := testWorker(eng, &fakeSlots{})

	task, err := NewEngageLeadTask(EngageLeadPayload{LeadID: uuid.New().String(), Kind: string(jobs.KindRetry)})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.handleEngageLead(context.Background(), task); err != nil {
		t.Fatalf("finished lead must not fail the task: %v", err)
	}
}

func TestWorkerReturnsTransientErrors(t *testing.T) {
	wantErr := errors.New("database down")
	eng := &fakeEngager{err: wantErr}
	w := testWorker(eng, &fakeSlots{})

	task, err := NewEngageLeadTask(EngageLeadPayload{LeadID: uuid.New().String(), Kind: string(jobs.KindRetry)})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.handleEngageLead(context.Background(), task); !errors.Is(err, wantErr) {
		t.Fatalf("expected transient error to propagate for retry, got %v", err)
	}
}
