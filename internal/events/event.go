// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadcall_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a new lead is registered.
type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Phone  string    `json:"phone"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// CallInitiated is published when an outbound call attempt has been
// accepted by the provider.
type CallInitiated struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	CallID     string    `json:"callId"`
	RetryCount int       `json:"retryCount"`
	Forced     bool      `json:"forced"`
}

func (e CallInitiated) EventName() string { return "engagement.call.initiated" }

// CallOutcomeRecorded is published once per call attempt when its
// terminal outcome has been applied to the lead.
type CallOutcomeRecorded struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	CallID  string    `json:"callId,omitempty"`
	Outcome string    `json:"outcome"`
	Source  string    `json:"source"` // "webhook", "sweep" or "sync"
}

func (e CallOutcomeRecorded) EventName() string { return "engagement.call.outcome_recorded" }

// RetryScheduled is published when a failed attempt results in a new
// retry job.
type RetryScheduled struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	RetryCount int       `json:"retryCount"`
	RunAt      time.Time `json:"runAt"`
}

func (e RetryScheduled) EventName() string { return "engagement.retry.scheduled" }

// FallbackSent is published when a lead exhausted its retries and the
// fallback channel chain was triggered.
type FallbackSent struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	Channel string    `json:"channel"` // "whatsapp", "email" or "none"
}

func (e FallbackSent) EventName() string { return "engagement.fallback.sent" }

// LeadStuckDetected is published when the reconciliation sweep finds a
// lead whose call never produced a report event.
type LeadStuckDetected struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	CallID string    `json:"callId"`
}

func (e LeadStuckDetected) EventName() string { return "engagement.lead.stuck_detected" }

// EmailReplyReceived is published when the inbound mail poller matches
// a reply to a lead.
type EmailReplyReceived struct {
	BaseEvent
	LeadID  uuid.UUID `json:"leadId"`
	Subject string    `json:"subject"`
}

func (e EmailReplyReceived) EventName() string { return "engagement.email.reply_received" }

// BulkScheduleStarted is published when a bulk call schedule has been
// expanded into batch slot jobs.
type BulkScheduleStarted struct {
	BaseEvent
	ScheduleID uuid.UUID `json:"scheduleId"`
	TotalLeads int       `json:"totalLeads"`
	Waves      int       `json:"waves"`
}

func (e BulkScheduleStarted) EventName() string { return "bulk.schedule.started" }
