package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"leadcall_backend/internal/callprovider"
	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/events"
	"leadcall_backend/internal/leadstore"
	"leadcall_backend/platform/logger"
)

// OutcomeApplier is the slice of the workflow engine the reconciler
// drives.
type OutcomeApplier interface {
	ApplyOutcome(ctx context.Context, leadID uuid.UUID, callID string, outcome engine.Outcome, summary *string, source string) error
	RecordProgress(ctx context.Context, leadID uuid.UUID, status leadstore.EngagementStatus) error
}

// LeadLookup resolves webhook call ids and finds stuck leads.
type LeadLookup interface {
	GetByCallID(ctx context.Context, callID string) (*leadstore.Lead, error)
	ListStuck(ctx context.Context, cutoff time.Time) ([]leadstore.Lead, error)
}

// ReportLedger claims call ids so each report is processed once.
type ReportLedger interface {
	MarkProcessed(ctx context.Context, callID string, leadID uuid.UUID, outcome, source string) (bool, error)
}

// CallFetcher asks the provider for a call's current state. Used by
// the sweep before it synthesizes an outcome.
type CallFetcher interface {
	GetCall(ctx context.Context, callID string) (*callprovider.CallInfo, error)
}

// Archiver stores raw report payloads and quarantines unrecognized
// webhook shapes. Implementations must tolerate being nil-configured.
type Archiver interface {
	ArchiveReport(ctx context.Context, callID string, payload []byte) error
	Quarantine(ctx context.Context, payload []byte) error
}

// Service reconciles provider events with lead state.
type Service struct {
	engine  OutcomeApplier
	leads   LeadLookup
	ledger  ReportLedger
	fetcher CallFetcher
	archive Archiver
	bus     events.Bus
	log     *logger.Logger

	callMaxDuration time.Duration
}

// NewService creates the reconciler. archive may be nil when no bucket
// is configured.
func NewService(eng OutcomeApplier, leads LeadLookup, ledger ReportLedger, fetcher CallFetcher, archive Archiver, bus events.Bus, callMaxDuration time.Duration, log *logger.Logger) *Service {
	return &Service{
		engine:          eng,
		leads:           leads,
		ledger:          ledger,
		fetcher:         fetcher,
		archive:         archive,
		bus:             bus,
		callMaxDuration: callMaxDuration,
		log:             log,
	}
}

// ProcessPayload handles one raw webhook delivery. It never returns an
// error for bad or duplicate payloads; those are logged and dropped so
// the provider is always acknowledged.
func (s *Service) ProcessPayload(ctx context.Context, body []byte) error {
	ev, err := callprovider.ParseEvent(body)
	if err != nil {
		if errors.Is(err, callprovider.ErrUnknownEvent) {
			s.quarantine(ctx, body)
			s.log.WebhookDiscarded("unknown", "", "unhandled event type")
			return nil
		}
		s.quarantine(ctx, body)
		s.log.WebhookDiscarded("malformed", "", err.Error())
		return nil
	}

	switch e := ev.(type) {
	case callprovider.StatusEvent:
		return s.handleStatus(ctx, e)
	case callprovider.ReportEvent:
		return s.handleReport(ctx, e)
	}
	return nil
}

// handleStatus applies transient progress. Terminal decisions never
// happen here.
func (s *Service) handleStatus(ctx context.Context, ev callprovider.StatusEvent) error {
	lead, err := s.leads.GetByCallID(ctx, ev.ID)
	if errors.Is(err, leadstore.ErrNotFound) {
		s.log.WebhookDiscarded("status-update", ev.ID, "no lead with this active call")
		return nil
	}
	if err != nil {
		return err
	}

	switch ev.Status {
	case "in-progress", "forwarding":
		s.log.WebhookEvent("status-update", ev.ID, "answered")
		return s.engine.RecordProgress(ctx, lead.ID, leadstore.StatusAnswered)
	default:
		// queued / ringing: the lead is already marked initiated.
		s.log.WebhookEvent("status-update", ev.ID, "noted "+ev.Status)
		return nil
	}
}

// handleReport applies the terminal outcome for one call, exactly once
// per call id.
func (s *Service) handleReport(ctx context.Context, ev callprovider.ReportEvent) error {
	lead, err := s.leads.GetByCallID(ctx, ev.ID)
	if errors.Is(err, leadstore.ErrNotFound) {
		s.log.WebhookDiscarded("end-of-call-report", ev.ID, "no lead with this active call")
		return nil
	}
	if err != nil {
		return err
	}

	outcome := MapReason(ev.EndedReason, ev.AnsweredAt != nil)
	claimed, err := s.ledger.MarkProcessed(ctx, ev.ID, lead.ID, string(outcome), "webhook")
	if err != nil {
		return err
	}
	if !claimed {
		s.log.WebhookDiscarded("end-of-call-report", ev.ID, "report already processed")
		return nil
	}

	s.archiveReport(ctx, ev.ID, ev.Raw)
	s.log.WebhookEvent("end-of-call-report", ev.ID, string(outcome))

	var summary *string
	if ev.Summary != "" {
		summary = &ev.Summary
	}
	return s.engine.ApplyOutcome(ctx, lead.ID, ev.ID, outcome, summary, "webhook")
}

// Sweep finds leads stuck in initiated past the maximum call duration,
// asks the provider what actually happened, and feeds the result (or a
// synthetic Missed when the provider has nothing) through the shared
// decision rule. The ledger guards against racing a late webhook.
func (s *Service) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.callMaxDuration)
	stuck, err := s.leads.ListStuck(ctx, cutoff)
	if err != nil {
		return err
	}

	// Each stuck lead costs a provider lookup; resolve a few in
	// parallel but stay well under the provider rate limit.
	var g errgroup.Group
	g.SetLimit(4)
	for i := range stuck {
		lead := &stuck[i]
		if !lead.HasActiveCall() {
			continue
		}
		callID := *lead.ActiveCallID

		g.Go(func() error {
			s.sweepLead(ctx, lead, callID)
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) sweepLead(ctx context.Context, lead *leadstore.Lead, callID string) {
	s.bus.Publish(ctx, events.LeadStuckDetected{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		CallID:    callID,
	})

	outcome, resolved := s.resolveStuckCall(ctx, callID)
	if !resolved {
		return
	}

	claimed, err := s.ledger.MarkProcessed(ctx, callID, lead.ID, string(outcome), "sweep")
	if err != nil {
		s.log.WithLeadID(lead.ID.String()).DatabaseError("mark sweep processed", err)
		return
	}
	if !claimed {
		// Webhook won the race while we were sweeping.
		return
	}

	s.log.WithLeadID(lead.ID.String()).Info("stuck call reconciled",
		"call_id", callID, "outcome", string(outcome))
	if err := s.engine.ApplyOutcome(ctx, lead.ID, callID, outcome, nil, "sweep"); err != nil {
		s.log.WithLeadID(lead.ID.String()).Error("sweep outcome apply failed", "error", err.Error())
	}
}

// resolveStuckCall determines what happened to a call the provider
// never reported on. A call the provider still shows in progress is
// left alone for the next sweep.
func (s *Service) resolveStuckCall(ctx context.Context, callID string) (engine.Outcome, bool) {
	info, err := s.fetcher.GetCall(ctx, callID)
	if errors.Is(err, callprovider.ErrCallNotFound) {
		return engine.OutcomeMissed, true
	}
	if err != nil {
		s.log.Warn("provider lookup failed during sweep, treating as missed",
			"call_id", callID, "error", err.Error())
		return engine.OutcomeMissed, true
	}
	if !info.Ended() {
		return "", false
	}
	return MapReason(info.EndedReason, info.AnsweredAt != nil), true
}

func (s *Service) archiveReport(ctx context.Context, callID string, payload []byte) {
	if s.archive == nil || len(payload) == 0 {
		return
	}
	if err := s.archive.ArchiveReport(ctx, callID, payload); err != nil {
		s.log.Warn("report archive failed", "call_id", callID, "error", err.Error())
	}
}

func (s *Service) quarantine(ctx context.Context, payload []byte) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Quarantine(ctx, payload); err != nil {
		s.log.Warn("payload quarantine failed", "error", err.Error())
	}
}
