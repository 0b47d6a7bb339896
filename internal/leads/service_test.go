package leads

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/events"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/internal/leadstore"
	"leadcall_backend/platform/logger"
)

// stubLeads is a minimal leadstore.Store backed by a single lead.
type stubLeads struct {
	lead *leadstore.Lead
}

func (s *stubLeads) Get(_ context.Context, id uuid.UUID) (*leadstore.Lead, error) {
	if s.lead == nil || s.lead.ID != id {
		return nil, leadstore.ErrNotFound
	}
	copied := *s.lead
	return &copied, nil
}

func (s *stubLeads) GetByCallID(context.Context, string) (*leadstore.Lead, error) {
	return nil, leadstore.ErrNotFound
}

func (s *stubLeads) Create(_ context.Context, lead *leadstore.Lead) error {
	s.lead = lead
	return nil
}

func (s *stubLeads) List(context.Context, int, int) ([]leadstore.Lead, error) {
	if s.lead == nil {
		return nil, nil
	}
	return []leadstore.Lead{*s.lead}, nil
}

func (s *stubLeads) Delete(context.Context, uuid.UUID) error {
	s.lead = nil
	return nil
}

func (s *stubLeads) BeginCall(_ context.Context, _ uuid.UUID, callID string, now time.Time) (bool, error) {
	if s.lead.HasActiveCall() {
		return false, nil
	}
	s.lead.ActiveCallID = &callID
	s.lead.LastEngagementTime = &now
	return true, nil
}

func (s *stubLeads) SwapCallID(_ context.Context, _ uuid.UUID, oldCallID, newCallID string) (bool, error) {
	if s.lead.ActiveCallID == nil || *s.lead.ActiveCallID != oldCallID {
		return false, nil
	}
	s.lead.ActiveCallID = &newCallID
	return true, nil
}

func (s *stubLeads) ClearCall(_ context.Context, _ uuid.UUID, callID string) (bool, error) {
	if s.lead.ActiveCallID == nil || *s.lead.ActiveCallID != callID {
		return false, nil
	}
	s.lead.ActiveCallID = nil
	return true, nil
}

func (s *stubLeads) RecordOutcome(_ context.Context, _ uuid.UUID, out leadstore.Outcome) error {
	s.lead.Status = out.Status
	s.lead.RetryCount = out.RetryCount
	s.lead.NextRetryTime = out.NextRetryTime
	s.lead.TerminalOutcome = out.TerminalOutcome
	s.lead.Summary = out.Summary
	return nil
}

func (s *stubLeads) SetStatus(_ context.Context, _ uuid.UUID, status leadstore.EngagementStatus) error {
	s.lead.Status = status
	return nil
}

func (s *stubLeads) MarkFallbackSent(context.Context, uuid.UUID) (bool, error) {
	if s.lead.FallbackSent {
		return false, nil
	}
	s.lead.FallbackSent = true
	return true, nil
}

func (s *stubLeads) ListDueForRetry(context.Context, time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *stubLeads) ListStuck(context.Context, time.Time) ([]leadstore.Lead, error) {
	return nil, nil
}

var _ leadstore.Store = (*stubLeads)(nil)

type noopForcer struct{}

func (noopForcer) ForceRetry(context.Context, uuid.UUID) error { return nil }

func newReplyFixture(t *testing.T) (*Service, *stubLeads, jobs.Store, *events.InMemoryBus) {
	t.Helper()
	log := logger.New("development")
	next := time.Now().Add(time.Minute)
	store := &stubLeads{lead: &leadstore.Lead{
		ID:            uuid.New(),
		Name:          "Reply Test",
		Phone:         "+31612345678",
		Status:        leadstore.StatusMissed,
		RetryCount:    1,
		NextRetryTime: &next,
		MaxRetryCount: 3,
	}}
	jobStore := jobs.NewMemoryStore(jobs.NewMemoryBacking())
	bus := events.NewInMemoryBus(log)
	svc := NewService(store, jobStore, noopForcer{}, engine.RetryPolicy{MaxRetryCount: 3}, bus, log)
	svc.RegisterHandlers(bus)
	return svc, store, jobStore, bus
}

func TestEmailReplyHaltsEngagement(t *testing.T) {
	ctx := context.Background()
	_, store, jobStore, bus := newReplyFixture(t)

	if err := jobStore.Enqueue(ctx, jobs.NewRetry(store.lead.ID, time.Now().Add(time.Minute))); err != nil {
		t.Fatalf("enqueue retry: %v", err)
	}

	err := bus.PublishSync(ctx, events.EmailReplyReceived{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    store.lead.ID,
		Subject:   "Re: your request [Lead:" + store.lead.ID.String() + "]",
	})
	if err != nil {
		t.Fatalf("publish reply: %v", err)
	}

	pending, err := jobStore.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected pending jobs cancelled, got %d", len(pending))
	}
	if store.lead.TerminalOutcome == nil || *store.lead.TerminalOutcome != "replied" {
		t.Fatalf("expected terminal outcome replied, got %v", store.lead.TerminalOutcome)
	}
	if store.lead.Status != leadstore.StatusCompleted {
		t.Fatalf("expected status completed, got %s", store.lead.Status)
	}
}

func TestEmailReplyForTerminalLeadIsIgnored(t *testing.T) {
	ctx := context.Background()
	_, store, jobStore, bus := newReplyFixture(t)

	exhausted := "exhausted"
	store.lead.TerminalOutcome = &exhausted
	store.lead.Status = leadstore.StatusFailed

	if err := jobStore.Enqueue(ctx, jobs.NewCallback(store.lead.ID, time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("enqueue callback: %v", err)
	}

	err := bus.PublishSync(ctx, events.EmailReplyReceived{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    store.lead.ID,
		Subject:   "Re: hello",
	})
	if err != nil {
		t.Fatalf("publish reply: %v", err)
	}

	if *store.lead.TerminalOutcome != "exhausted" {
		t.Fatalf("terminal outcome overwritten: %s", *store.lead.TerminalOutcome)
	}
	pending, err := jobStore.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected terminal lead's jobs untouched, got %d", len(pending))
	}
}
