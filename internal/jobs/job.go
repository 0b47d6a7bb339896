// Package jobs provides the durable, time-ordered queue of deferred
// work items. Jobs survive process restarts; a job is removed when it
// is claimed, and the resulting action's outcome is tracked on the
// lead, not the job.
package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of deferred work.
type Kind string

const (
	// KindRetry is a scheduled retry attempt. Singleton per lead.
	KindRetry Kind = "retry"
	// KindCallback is a lead-requested callback time. Singleton per lead.
	KindCallback Kind = "callback"
	// KindBatchSlot is one lead's slot in a bulk schedule wave.
	KindBatchSlot Kind = "batch_slot"
)

// Singleton reports whether at most one job of this kind may exist per
// lead at a time.
func (k Kind) Singleton() bool {
	return k == KindRetry || k == KindCallback
}

// ErrDuplicate is returned by Enqueue when a singleton job for the
// same (lead, kind) already exists. Callers treat it as "already
// scheduled", not as a failure.
var ErrDuplicate = errors.New("job already scheduled for lead")

// Payload carries kind-specific job data.
type Payload struct {
	SlotIndex int  `json:"slotIndex,omitempty"`
	Forced    bool `json:"forced,omitempty"`
}

// Job is one unit of deferred work.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Kind       Kind       `json:"kind"`
	LeadID     uuid.UUID  `json:"leadId"`
	RunAt      time.Time  `json:"runAt"`
	ScheduleID *uuid.UUID `json:"scheduleId,omitempty"`
	Payload    Payload    `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// NewRetry builds a retry job due at runAt.
func NewRetry(leadID uuid.UUID, runAt time.Time) Job {
	return Job{ID: uuid.New(), Kind: KindRetry, LeadID: leadID, RunAt: runAt}
}

// NewCallback builds a callback job due at runAt.
func NewCallback(leadID uuid.UUID, runAt time.Time) Job {
	return Job{ID: uuid.New(), Kind: KindCallback, LeadID: leadID, RunAt: runAt}
}

// NewBatchSlot builds a bulk schedule slot job.
func NewBatchSlot(leadID, scheduleID uuid.UUID, slotIndex int, runAt time.Time) Job {
	return Job{
		ID:         uuid.New(),
		Kind:       KindBatchSlot,
		LeadID:     leadID,
		RunAt:      runAt,
		ScheduleID: &scheduleID,
		Payload:    Payload{SlotIndex: slotIndex},
	}
}
