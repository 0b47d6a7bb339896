// Package leads is the lead management bounded context: CRUD over the
// lead store, forced call attempts, and orchestrator observability
// (pending jobs, retry configuration).
package leads

import (
	"context"

	"github.com/google/uuid"

	"leadcall_backend/internal/engine"
	"leadcall_backend/internal/events"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/internal/leadstore"
	"leadcall_backend/platform/logger"
	"leadcall_backend/platform/phone"
)

// Forcer is the slice of the workflow engine this module needs.
type Forcer interface {
	ForceRetry(ctx context.Context, leadID uuid.UUID) error
}

// Service implements lead management on top of the lead store.
type Service struct {
	leads  leadstore.Store
	jobs   jobs.Store
	engine Forcer
	policy engine.RetryPolicy
	bus    events.Bus
	log    *logger.Logger
}

// NewService creates the leads service.
func NewService(leads leadstore.Store, jobStore jobs.Store, forcer Forcer, policy engine.RetryPolicy, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:  leads,
		jobs:   jobStore,
		engine: forcer,
		policy: policy,
		bus:    bus,
		log:    log,
	}
}

// CreateInput is a validated lead creation request.
type CreateInput struct {
	Name           string
	Phone          string
	WhatsAppNumber string
	Email          string
	MaxRetryCount  int
}

// Create registers a new lead. Phone numbers are normalized to E.164;
// the lead id is assigned here, never by the caller.
func (s *Service) Create(ctx context.Context, in CreateInput) (*leadstore.Lead, error) {
	normalized, err := phone.NormalizeE164(in.Phone)
	if err != nil {
		return nil, err
	}

	whatsapp := in.WhatsAppNumber
	if whatsapp != "" {
		if whatsapp, err = phone.NormalizeE164(whatsapp); err != nil {
			return nil, err
		}
	}

	maxRetries := in.MaxRetryCount
	if maxRetries <= 0 {
		maxRetries = s.policy.MaxRetryCount
	}

	lead := &leadstore.Lead{
		ID:             uuid.New(),
		Name:           in.Name,
		Phone:          normalized,
		WhatsAppNumber: whatsapp,
		Email:          in.Email,
		Status:         leadstore.StatusPending,
		MaxRetryCount:  maxRetries,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, err
	}

	s.log.WithLeadID(lead.ID.String()).Info("lead created", "phone", lead.Phone)
	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Phone:     lead.Phone,
	})
	return lead, nil
}

// Get returns one lead.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*leadstore.Lead, error) {
	return s.leads.Get(ctx, id)
}

// List returns a page of leads.
func (s *Service) List(ctx context.Context, limit, offset int) ([]leadstore.Lead, error) {
	return s.leads.List(ctx, limit, offset)
}

// Delete removes a lead and cancels any pending work for it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.jobs.CancelByLead(ctx, id); err != nil {
		return err
	}
	return s.leads.Delete(ctx, id)
}

// ForceCall starts an attempt for the lead now, ignoring the retry
// timer. engine.ErrAlreadyActive passes through for the handler to map.
func (s *Service) ForceCall(ctx context.Context, id uuid.UUID) error {
	return s.engine.ForceRetry(ctx, id)
}

// RegisterHandlers subscribes to the domain events this service reacts
// to. Both the API and the orchestrator call this, since either process
// may carry the inbound mail poller that publishes replies.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.EmailReplyReceived{}.EventName(), s)
}

// Handle routes events to the appropriate service method.
func (s *Service) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.EmailReplyReceived:
		return s.StopEngagement(ctx, e.LeadID, "replied")
	default:
		return nil
	}
}

// StopEngagement halts all outbound work for a lead that has responded
// on its own. Pending jobs are cancelled and the lead is closed with
// the given terminal outcome. Already-terminal leads are left alone.
func (s *Service) StopEngagement(ctx context.Context, id uuid.UUID, reason string) error {
	lead, err := s.leads.Get(ctx, id)
	if err != nil {
		return err
	}
	if lead.Terminal() {
		return nil
	}
	if err := s.jobs.CancelByLead(ctx, id); err != nil {
		return err
	}
	if err := s.leads.RecordOutcome(ctx, id, leadstore.Outcome{
		Status:          leadstore.StatusCompleted,
		RetryCount:      lead.RetryCount,
		TerminalOutcome: &reason,
	}); err != nil {
		return err
	}
	s.log.WithLeadID(id.String()).Info("engagement stopped", "reason", reason)
	return nil
}

// PendingJobs returns all pending orchestrator jobs.
func (s *Service) PendingJobs(ctx context.Context) ([]jobs.Job, error) {
	return s.jobs.ListPending(ctx)
}

// RetryConfig is the read-only view of the retry policy.
type RetryConfig struct {
	MaxRetryCount   int      `json:"maxRetryCount"`
	IntervalSeconds []int    `json:"intervalSeconds"`
	Intervals       []string `json:"intervals"`
}

// RetryConfig returns the active retry policy.
func (s *Service) RetryConfig() RetryConfig {
	cfg := RetryConfig{MaxRetryCount: s.policy.MaxRetryCount}
	for _, interval := range s.policy.Intervals {
		cfg.IntervalSeconds = append(cfg.IntervalSeconds, int(interval.Seconds()))
		cfg.Intervals = append(cfg.Intervals, interval.String())
	}
	return cfg
}

var _ events.Handler = (*Service)(nil)
