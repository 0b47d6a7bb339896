package engine

import (
	"time"

	"leadcall_backend/internal/leadstore"
)

// Outcome is the terminal result of one engagement attempt.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeMissed    Outcome = "missed"
	OutcomeFailed    Outcome = "failed"
)

// Step is what the workflow does next after an attempt ends.
type Step string

const (
	// StepDone ends the workflow with a successful conversation.
	StepDone Step = "done"
	// StepRetry schedules another attempt after the policy interval.
	StepRetry Step = "retry"
	// StepFallback ends the call workflow and triggers the fallback
	// channel chain.
	StepFallback Step = "fallback"
)

// Decision is the outcome of the transition rule for one attempt.
type Decision struct {
	Step        Step
	RetryCount  int
	NextRetryAt time.Time
	Status      leadstore.EngagementStatus
}

// Decide is the single authoritative transition rule, shared by the
// webhook path, the synchronous-failure path and the reconciliation
// sweep. It never initiates the next attempt itself; a retry only runs
// when the scheduler later fires the job created from this decision.
func Decide(policy RetryPolicy, lead *leadstore.Lead, outcome Outcome, now time.Time) Decision {
	if outcome == OutcomeCompleted {
		return Decision{
			Step:       StepDone,
			RetryCount: lead.RetryCount,
			Status:     leadstore.StatusCompleted,
		}
	}

	status := leadstore.StatusMissed
	if outcome == OutcomeFailed {
		status = leadstore.StatusFailed
	}

	attempts := lead.RetryCount + 1
	if attempts < policy.MaxFor(lead.MaxRetryCount) {
		return Decision{
			Step:        StepRetry,
			RetryCount:  attempts,
			NextRetryAt: now.Add(policy.Interval(attempts)),
			Status:      status,
		}
	}

	return Decision{
		Step:       StepFallback,
		RetryCount: attempts,
		Status:     status,
	}
}
