package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadcall_backend/internal/callprovider"
	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/leadstore"
	platformevents "leadcall_backend/platform/events"
	"leadcall_backend/platform/logger"
)

func TestMapReason(t *testing.T) {
	cases := []struct {
		reason   string
		answered bool
		want     engine.Outcome
	}{
		{"customer-did-not-answer", false, engine.OutcomeMissed},
		{"customer-busy", false, engine.OutcomeMissed},
		{"sip-486-busy-here", false, engine.OutcomeMissed},
		{"sip-487-request-terminated", false, engine.OutcomeMissed},
		{"voicemail", false, engine.OutcomeMissed},
		{"twilio-failed-to-connect-call", false, engine.OutcomeFailed},
		{"pipeline-error-openai-llm-failed", false, engine.OutcomeFailed},
		{"sip-503-service-unavailable", false, engine.OutcomeFailed},
		{"assistant-ended-call", true, engine.OutcomeCompleted},
		{"customer-ended-call", true, engine.OutcomeCompleted},
		// An unknown reason without an answer never counts as success.
		{"something-new", false, engine.OutcomeMissed},
	}
	for _, tc := range cases {
		if got := MapReason(tc.reason, tc.answered); got != tc.want {
			t.Errorf("MapReason(%q, %v) = %s, want %s", tc.reason, tc.answered, got, tc.want)
		}
	}
}

// appliedOutcome records one ApplyOutcome call.
type appliedOutcome struct {
	LeadID  uuid.UUID
	CallID  string
	Outcome engine.Outcome
	Source  string
}

type fakeEngine struct {
	mu       sync.Mutex
	applied  []appliedOutcome
	progress []leadstore.EngagementStatus
}

func (f *fakeEngine) ApplyOutcome(_ context.Context, leadID uuid.UUID, callID string, outcome engine.Outcome, _ *string, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, appliedOutcome{LeadID: leadID, CallID: callID, Outcome: outcome, Source: source})
	return nil
}

func (f *fakeEngine) RecordProgress(_ context.Context, _ uuid.UUID, status leadstore.EngagementStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, status)
	return nil
}

type fakeLeads struct {
	byCallID map[string]leadstore.Lead
	stuck    []leadstore.Lead
}

func (f *fakeLeads) GetByCallID(_ context.Context, callID string) (*leadstore.Lead, error) {
	l, ok := f.byCallID[callID]
	if !ok {
		return nil, leadstore.ErrNotFound
	}
	return &l, nil
}

func (f *fakeLeads) ListStuck(_ context.Context, _ time.Time) ([]leadstore.Lead, error) {
	return f.stuck, nil
}

type memLedger struct {
	mu   sync.Mutex
	seen map[string]string
}

func newMemLedger() *memLedger { return &memLedger{seen: make(map[string]string)} }

func (m *memLedger) MarkProcessed(_ context.Context, callID string, _ uuid.UUID, _, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[callID]; ok {
		return false, nil
	}
	m.seen[callID] = source
	return true, nil
}

type fakeFetcher struct {
	info *callprovider.CallInfo
	err  error
}

func (f *fakeFetcher) GetCall(_ context.Context, _ string) (*callprovider.CallInfo, error) {
	return f.info, f.err
}

func newService(eng *fakeEngine, leads *fakeLeads, ledger *memLedger, fetcher *fakeFetcher) *Service {
	log := logger.New("development")
	bus := platformevents.NewInMemoryBus(log)
	return NewService(eng, leads, ledger, fetcher, nil, bus, 15*time.Minute, log)
}

func reportBody(callID, reason string) []byte {
	return []byte(`{"message":{"type":"end-of-call-report","endedReason":"` + reason + `","call":{"id":"` + callID + `"}}}`)
}

func TestProcessPayloadAppliesReportOutcome(t *testing.T) {
	ctx := context.Background()
	leadID := uuid.New()
	eng := &fakeEngine{}
	leads := &fakeLeads{byCallID: map[string]leadstore.Lead{"call-1": {ID: leadID}}}
	svc := newService(eng, leads, newMemLedger(), &fakeFetcher{})

	if err := svc.ProcessPayload(ctx, reportBody("call-1", "customer-did-not-answer")); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(eng.applied) != 1 {
		t.Fatalf("expected 1 applied outcome, got %d", len(eng.applied))
	}
	got := eng.applied[0]
	if got.LeadID != leadID || got.CallID != "call-1" || got.Outcome != engine.OutcomeMissed || got.Source != "webhook" {
		t.Fatalf("unexpected applied outcome: %+v", got)
	}
}

func TestProcessPayloadDuplicateReportAppliedOnce(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	leads := &fakeLeads{byCallID: map[string]leadstore.Lead{"call-1": {ID: uuid.New()}}}
	svc := newService(eng, leads, newMemLedger(), &fakeFetcher{})

	body := reportBody("call-1", "customer-busy")
	for i := 0; i < 3; i++ {
		if err := svc.ProcessPayload(ctx, body); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if len(eng.applied) != 1 {
		t.Fatalf("duplicate reports reprocessed: applied %d times", len(eng.applied))
	}
}

func TestProcessPayloadUnknownCallIDDiscarded(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	svc := newService(eng, &fakeLeads{byCallID: map[string]leadstore.Lead{}}, newMemLedger(), &fakeFetcher{})

	if err := svc.ProcessPayload(ctx, reportBody("call-unknown", "customer-busy")); err != nil {
		t.Fatalf("unknown call id must not error: %v", err)
	}
	if len(eng.applied) != 0 {
		t.Fatal("unknown call id must not reach the engine")
	}
}

func TestProcessPayloadMalformedAndUnknownShapesDiscarded(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	svc := newService(eng, &fakeLeads{byCallID: map[string]leadstore.Lead{}}, newMemLedger(), &fakeFetcher{})

	for _, body := range [][]byte{
		[]byte(`garbage`),
		[]byte(`{"message":{"type":"speech-update","call":{"id":"c"}}}`),
	} {
		if err := svc.ProcessPayload(ctx, body); err != nil {
			t.Fatalf("discardable payload returned error: %v", err)
		}
	}
	if len(eng.applied) != 0 || len(eng.progress) != 0 {
		t.Fatal("discarded payloads must not touch the engine")
	}
}

func TestProcessPayloadStatusUpdateRecordsProgress(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	leads := &fakeLeads{byCallID: map[string]leadstore.Lead{"call-1": {ID: uuid.New()}}}
	svc := newService(eng, leads, newMemLedger(), &fakeFetcher{})

	body := []byte(`{"message":{"type":"status-update","status":"in-progress","call":{"id":"call-1"}}}`)
	if err := svc.ProcessPayload(ctx, body); err != nil {
		t.Fatal(err)
	}
	if len(eng.progress) != 1 || eng.progress[0] != leadstore.StatusAnswered {
		t.Fatalf("expected answered progress, got %+v", eng.progress)
	}
	if len(eng.applied) != 0 {
		t.Fatal("status update must not carry a terminal decision")
	}
}

func stuckLead(callID string) leadstore.Lead {
	past := time.Now().Add(-time.Hour)
	return leadstore.Lead{
		ID:                 uuid.New(),
		Status:             leadstore.StatusInitiated,
		ActiveCallID:       &callID,
		LastEngagementTime: &past,
	}
}

func TestSweepSynthesizesMissedForVanishedCall(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	leads := &fakeLeads{stuck: []leadstore.Lead{stuckLead("call-gone")}}
	svc := newService(eng, leads, newMemLedger(), &fakeFetcher{err: callprovider.ErrCallNotFound})

	if err := svc.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if len(eng.applied) != 1 {
		t.Fatalf("expected 1 synthetic outcome, got %d", len(eng.applied))
	}
	if eng.applied[0].Outcome != engine.OutcomeMissed || eng.applied[0].Source != "sweep" {
		t.Fatalf("unexpected outcome: %+v", eng.applied[0])
	}

	// The ledger makes a second sweep of the same call a no-op.
	if err := svc.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if len(eng.applied) != 1 {
		t.Fatalf("stuck lead forced into the decision twice: %d", len(eng.applied))
	}
}

func TestSweepUsesProviderReasonWhenCallEnded(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	leads := &fakeLeads{stuck: []leadstore.Lead{stuckLead("call-ended")}}
	answered := time.Now().Add(-30 * time.Minute)
	svc := newService(eng, leads, newMemLedger(), &fakeFetcher{info: &callprovider.CallInfo{
		ID:          "call-ended",
		Status:      "ended",
		EndedReason: "customer-ended-call",
		AnsweredAt:  &answered,
	}})

	if err := svc.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if len(eng.applied) != 1 || eng.applied[0].Outcome != engine.OutcomeCompleted {
		t.Fatalf("expected completed from provider state, got %+v", eng.applied)
	}
}

func TestSweepLeavesOngoingCallsAlone(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	leads := &fakeLeads{stuck: []leadstore.Lead{stuckLead("call-long")}}
	svc := newService(eng, leads, newMemLedger(), &fakeFetcher{info: &callprovider.CallInfo{
		ID:     "call-long",
		Status: "in-progress",
	}})

	if err := svc.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if len(eng.applied) != 0 {
		t.Fatal("a call the provider still reports in progress must not be forced")
	}
}

func TestSweepSkipsCallAlreadyHandledByWebhook(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	ledger := newMemLedger()
	lead := stuckLead("call-raced")
	leads := &fakeLeads{stuck: []leadstore.Lead{lead}}
	svc := newService(eng, leads, ledger, &fakeFetcher{err: callprovider.ErrCallNotFound})

	// Webhook path claimed the report first.
	if _, err := ledger.MarkProcessed(ctx, "call-raced", lead.ID, "missed", "webhook"); err != nil {
		t.Fatal(err)
	}

	if err := svc.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if len(eng.applied) != 0 {
		t.Fatal("sweep must not reprocess a webhook-handled call")
	}
}
