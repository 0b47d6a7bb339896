package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadcall_backend/internal/events"
	"leadcall_backend/internal/jobs"
	"leadcall_backend/internal/leadstore"
	"leadcall_backend/platform/logger"
)

var (
	// ErrAlreadyActive is returned when a lead already has an
	// outstanding call attempt.
	ErrAlreadyActive = errors.New("lead already has an active engagement")
	// ErrNotEligible is returned when a lead is not due for an attempt
	// (wrong status, retry time in the future, or already terminal).
	ErrNotEligible = errors.New("lead is not eligible for engagement")
)

// CallPlacer places one outbound call. Implementations must bound
// their own latency; a timeout is reported as an error here and
// treated as a synchronous failure.
type CallPlacer interface {
	PlaceCall(ctx context.Context, lead *leadstore.Lead) (callID string, err error)
}

// FallbackSender delivers the one-shot fallback message after retries
// are exhausted. It returns the channel that accepted the message.
type FallbackSender interface {
	Send(ctx context.Context, lead *leadstore.Lead) (channel string, err error)
}

// JobScheduler is the slice of the job store the engine needs.
type JobScheduler interface {
	Enqueue(ctx context.Context, job jobs.Job) error
	Cancel(ctx context.Context, leadID uuid.UUID, kind jobs.Kind) error
}

// LeadStore is the slice of the lead record accessor the engine needs.
type LeadStore interface {
	Get(ctx context.Context, id uuid.UUID) (*leadstore.Lead, error)
	BeginCall(ctx context.Context, id uuid.UUID, callID string, now time.Time) (bool, error)
	SwapCallID(ctx context.Context, id uuid.UUID, oldCallID, newCallID string) (bool, error)
	ClearCall(ctx context.Context, id uuid.UUID, callID string) (bool, error)
	RecordOutcome(ctx context.Context, id uuid.UUID, out leadstore.Outcome) error
	SetStatus(ctx context.Context, id uuid.UUID, status leadstore.EngagementStatus) error
	MarkFallbackSent(ctx context.Context, id uuid.UUID) (bool, error)
}

// Engine drives the per-lead engagement state machine. All writes to a
// lead's engagement fields pass through here under a per-lead lock, so
// a webhook arriving mid-dispatch cannot interleave with a new attempt
// for the same lead.
type Engine struct {
	leads    LeadStore
	jobs     JobScheduler
	caller   CallPlacer
	fallback FallbackSender
	policy   RetryPolicy
	bus      events.Bus
	log      *logger.Logger

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

// New creates the workflow engine.
func New(leads LeadStore, jobStore JobScheduler, caller CallPlacer, fallback FallbackSender, policy RetryPolicy, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{
		leads:    leads,
		jobs:     jobStore,
		caller:   caller,
		fallback: fallback,
		policy:   policy,
		bus:      bus,
		log:      log,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockLead serializes all workflow steps for one lead.
func (e *Engine) lockLead(id uuid.UUID) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// EngageOptions controls one dispatch of the call step.
type EngageOptions struct {
	// Forced bypasses the eligibility timing gate. Used by forced
	// retries and batch slot jobs. The mutual exclusion and terminal
	// checks still apply.
	Forced bool
}

// EngageLead runs the call-initiation step for one lead. On a
// synchronous provider failure the attempt is fed straight into the
// retry decision; the next call only ever happens when the scheduler
// fires the resulting retry job.
func (e *Engine) EngageLead(ctx context.Context, leadID uuid.UUID, opts EngageOptions) error {
	unlock := e.lockLead(leadID)
	defer unlock()

	lead, err := e.leads.Get(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.Terminal() {
		return ErrNotEligible
	}
	if lead.HasActiveCall() {
		return ErrAlreadyActive
	}

	now := time.Now()
	if !opts.Forced && !eligible(lead, now) {
		return ErrNotEligible
	}

	log := e.log.WithLeadID(leadID.String())

	// Claim the slot before dialing. The per-lead mutex only covers
	// this process; a second engine over the same database must lose
	// here, before any provider call goes out.
	reservation := "reserved:" + uuid.NewString()
	applied, err := e.leads.BeginCall(ctx, leadID, reservation, now)
	if err != nil {
		return err
	}
	if !applied {
		return ErrAlreadyActive
	}

	callID, err := e.caller.PlaceCall(ctx, lead)
	if err != nil {
		// Synchronous rejection counts as a finished failed attempt.
		// applyLocked releases the reservation through ClearCall.
		log.Warn("call placement failed", "error", err.Error())
		return e.applyLocked(ctx, lead, reservation, OutcomeFailed, nil, "sync")
	}

	swapped, err := e.leads.SwapCallID(ctx, leadID, reservation, callID)
	if err != nil {
		return err
	}
	if !swapped {
		// The reservation id is private to this attempt, so losing it
		// means the row was modified out of band. The sweep will
		// resolve the live call by its real id.
		log.Error("call reservation lost while dialing", "call_id", callID)
		return ErrAlreadyActive
	}

	log.CallAttempt(leadID.String(), callID, lead.RetryCount)
	e.bus.Publish(ctx, events.CallInitiated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		CallID:     callID,
		RetryCount: lead.RetryCount,
		Forced:     opts.Forced,
	})
	return nil
}

// ApplyOutcome feeds a finished attempt into the decision rule. When
// callID is non-empty the outstanding call slot must still be held by
// that call; otherwise the event is stale and discarded. source is
// recorded on the published event ("webhook", "sweep" or "sync").
func (e *Engine) ApplyOutcome(ctx context.Context, leadID uuid.UUID, callID string, outcome Outcome, summary *string, source string) error {
	unlock := e.lockLead(leadID)
	defer unlock()

	lead, err := e.leads.Get(ctx, leadID)
	if err != nil {
		return err
	}
	return e.applyLocked(ctx, lead, callID, outcome, summary, source)
}

// applyLocked runs the shared decision rule. Caller holds the lead lock.
func (e *Engine) applyLocked(ctx context.Context, lead *leadstore.Lead, callID string, outcome Outcome, summary *string, source string) error {
	log := e.log.WithLeadID(lead.ID.String())

	if callID != "" {
		cleared, err := e.leads.ClearCall(ctx, lead.ID, callID)
		if err != nil {
			return err
		}
		if !cleared {
			log.Debug("ignoring outcome for non-active call", "call_id", callID)
			return nil
		}
		lead.ActiveCallID = nil
	}
	if lead.Terminal() {
		log.Debug("ignoring outcome for terminal lead", "outcome", string(outcome))
		return nil
	}

	now := time.Now()
	d := Decide(e.policy, lead, outcome, now)

	switch d.Step {
	case StepDone:
		terminal := string(OutcomeCompleted)
		err := e.leads.RecordOutcome(ctx, lead.ID, leadstore.Outcome{
			Status:          d.Status,
			RetryCount:      d.RetryCount,
			TerminalOutcome: &terminal,
			Summary:         summary,
		})
		if err != nil {
			return err
		}
		log.Info("engagement completed", "retry_count", d.RetryCount)

	case StepRetry:
		nextRetry := d.NextRetryAt
		err := e.leads.RecordOutcome(ctx, lead.ID, leadstore.Outcome{
			Status:        d.Status,
			RetryCount:    d.RetryCount,
			NextRetryTime: &nextRetry,
			Summary:       summary,
		})
		if err != nil {
			return err
		}
		err = e.jobs.Enqueue(ctx, jobs.NewRetry(lead.ID, nextRetry))
		if errors.Is(err, jobs.ErrDuplicate) {
			// A pending retry job survives from before this attempt and
			// carries a stale run_at. Firing early would hit the timing
			// gate and be dropped with no job left, so replace it.
			if err := e.jobs.Cancel(ctx, lead.ID, jobs.KindRetry); err != nil {
				return err
			}
			err = e.jobs.Enqueue(ctx, jobs.NewRetry(lead.ID, nextRetry))
			if err != nil && !errors.Is(err, jobs.ErrDuplicate) {
				return err
			}
		} else if err != nil {
			return err
		}
		log.Info("retry scheduled", "retry_count", d.RetryCount, "run_at", nextRetry)
		e.bus.Publish(ctx, events.RetryScheduled{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     lead.ID,
			RetryCount: d.RetryCount,
			RunAt:      nextRetry,
		})

	case StepFallback:
		err := e.leads.RecordOutcome(ctx, lead.ID, leadstore.Outcome{
			Status:     d.Status,
			RetryCount: d.RetryCount,
			Summary:    summary,
		})
		if err != nil {
			return err
		}
		if err := e.sendFallbackOnce(ctx, lead.ID); err != nil {
			return err
		}
	}

	e.bus.Publish(ctx, events.CallOutcomeRecorded{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		CallID:    callID,
		Outcome:   string(outcome),
		Source:    source,
	})
	return nil
}

// sendFallbackOnce flips fallback_sent and, only when this call won
// the flip, triggers the channel chain. Send failures are logged, not
// retried; the flag stays set so the chain never fires twice.
func (e *Engine) sendFallbackOnce(ctx context.Context, leadID uuid.UUID) error {
	flipped, err := e.leads.MarkFallbackSent(ctx, leadID)
	if err != nil {
		return err
	}
	if !flipped {
		e.log.WithLeadID(leadID.String()).Debug("fallback already sent")
		return nil
	}

	lead, err := e.leads.Get(ctx, leadID)
	if err != nil {
		return err
	}

	channel := "none"
	if sent, sendErr := e.fallback.Send(ctx, lead); sendErr != nil {
		e.log.WithLeadID(leadID.String()).Error("fallback delivery failed", "error", sendErr.Error())
	} else {
		channel = sent
	}

	e.log.WithLeadID(leadID.String()).Info("retries exhausted, fallback triggered", "channel", channel)
	e.bus.Publish(ctx, events.FallbackSent{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Channel:   channel,
	})
	return nil
}

// RecordProgress applies a transient provider status ("answered") to
// the lead without making any terminal decision.
func (e *Engine) RecordProgress(ctx context.Context, leadID uuid.UUID, status leadstore.EngagementStatus) error {
	unlock := e.lockLead(leadID)
	defer unlock()
	return e.leads.SetStatus(ctx, leadID, status)
}

// ForceRetry starts an attempt for the lead now, ignoring the retry
// timer. Returns ErrAlreadyActive when a call is outstanding.
func (e *Engine) ForceRetry(ctx context.Context, leadID uuid.UUID) error {
	lead, err := e.leads.Get(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.HasActiveCall() {
		return ErrAlreadyActive
	}
	// Free the singleton slot; the attempt we are about to make
	// replaces any scheduled retry.
	if err := e.jobs.Cancel(ctx, leadID, jobs.KindRetry); err != nil {
		return err
	}
	return e.EngageLead(ctx, leadID, EngageOptions{Forced: true})
}

func eligible(lead *leadstore.Lead, now time.Time) bool {
	switch lead.Status {
	case leadstore.StatusPending:
		return true
	case leadstore.StatusMissed, leadstore.StatusFailed:
		return lead.NextRetryTime != nil &&
			!lead.NextRetryTime.After(now) &&
			lead.RetryCount < lead.MaxRetryCount
	default:
		return false
	}
}
