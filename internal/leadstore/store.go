package leadstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lead does not exist.
var ErrNotFound = errors.New("lead not found")

// Outcome captures the result of one finished engagement attempt as
// written back to the lead record.
type Outcome struct {
	Status          EngagementStatus
	RetryCount      int
	NextRetryTime   *time.Time
	TerminalOutcome *string
	Summary         *string
}

// Store is the lead record accessor. Conditional operations return a
// bool reporting whether the write applied, so callers can detect
// races with the webhook path instead of losing updates.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Lead, error)
	GetByCallID(ctx context.Context, callID string) (*Lead, error)
	Create(ctx context.Context, lead *Lead) error
	List(ctx context.Context, limit, offset int) ([]Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// BeginCall marks a call attempt outstanding. It only applies when
	// no other call is outstanding for the lead.
	BeginCall(ctx context.Context, id uuid.UUID, callID string, now time.Time) (bool, error)

	// SwapCallID replaces the active call id, conditional on oldCallID
	// still holding the slot. Used to turn a pre-dial reservation into
	// the provider's real call id.
	SwapCallID(ctx context.Context, id uuid.UUID, oldCallID, newCallID string) (bool, error)

	// ClearCall releases the outstanding call slot. It only applies
	// when callID is still the active one, so stale report events
	// cannot clear a newer attempt.
	ClearCall(ctx context.Context, id uuid.UUID, callID string) (bool, error)

	// RecordOutcome writes the decision result for one attempt.
	RecordOutcome(ctx context.Context, id uuid.UUID, out Outcome) error

	// SetStatus updates only the engagement status. Used for transient
	// progress from provider status events.
	SetStatus(ctx context.Context, id uuid.UUID, status EngagementStatus) error

	// MarkFallbackSent flips fallback_sent false to true. Returns false
	// when it was already set, guaranteeing the flip happens once.
	MarkFallbackSent(ctx context.Context, id uuid.UUID) (bool, error)

	// ListDueForRetry returns leads whose next retry time has passed.
	// Used as a startup reconciliation source independent of the job
	// scheduler.
	ListDueForRetry(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// ListStuck returns leads still marked initiated whose last
	// engagement started before the cutoff.
	ListStuck(ctx context.Context, cutoff time.Time) ([]Lead, error)
}
