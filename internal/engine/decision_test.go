package engine

import (
	"testing"
	"time"

	"leadcall_backend/internal/leadstore"
)

var testPolicy = RetryPolicy{
	Intervals:     []time.Duration{1 * time.Hour, 4 * time.Hour, 24 * time.Hour},
	MaxRetryCount: 3,
}

func TestDecideCompletedIsTerminal(t *testing.T) {
	lead := &leadstore.Lead{RetryCount: 1, MaxRetryCount: 3}
	d := Decide(testPolicy, lead, OutcomeCompleted, time.Now())

	if d.Step != StepDone {
		t.Fatalf("expected StepDone, got %s", d.Step)
	}
	if d.Status != leadstore.StatusCompleted {
		t.Fatalf("expected completed status, got %s", d.Status)
	}
	if d.RetryCount != 1 {
		t.Fatalf("completed outcome must not bump retry count, got %d", d.RetryCount)
	}
}

func TestDecideMissedSchedulesRetryWithBackoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		retryCount int
		wantAfter  time.Duration
	}{
		{0, 1 * time.Hour},
		{1, 4 * time.Hour},
	}
	for _, tc := range cases {
		lead := &leadstore.Lead{RetryCount: tc.retryCount, MaxRetryCount: 3}
		d := Decide(testPolicy, lead, OutcomeMissed, now)

		if d.Step != StepRetry {
			t.Fatalf("retry_count=%d: expected StepRetry, got %s", tc.retryCount, d.Step)
		}
		if d.RetryCount != tc.retryCount+1 {
			t.Fatalf("retry_count=%d: expected increment to %d, got %d", tc.retryCount, tc.retryCount+1, d.RetryCount)
		}
		if want := now.Add(tc.wantAfter); !d.NextRetryAt.Equal(want) {
			t.Fatalf("retry_count=%d: expected next retry at %v, got %v", tc.retryCount, want, d.NextRetryAt)
		}
		if d.Status != leadstore.StatusMissed {
			t.Fatalf("expected missed status, got %s", d.Status)
		}
	}
}

func TestDecideFailedKeepsFailedStatus(t *testing.T) {
	lead := &leadstore.Lead{RetryCount: 0, MaxRetryCount: 3}
	d := Decide(testPolicy, lead, OutcomeFailed, time.Now())
	if d.Status != leadstore.StatusFailed {
		t.Fatalf("expected failed status, got %s", d.Status)
	}
}

func TestDecideExhaustionTriggersFallback(t *testing.T) {
	lead := &leadstore.Lead{RetryCount: 2, MaxRetryCount: 3}
	d := Decide(testPolicy, lead, OutcomeMissed, time.Now())

	if d.Step != StepFallback {
		t.Fatalf("expected StepFallback, got %s", d.Step)
	}
	if d.RetryCount != 3 {
		t.Fatalf("expected retry count 3, got %d", d.RetryCount)
	}
}

func TestDecideLeadMaxOverridesPolicyDefault(t *testing.T) {
	lead := &leadstore.Lead{RetryCount: 0, MaxRetryCount: 1}
	d := Decide(testPolicy, lead, OutcomeMissed, time.Now())
	if d.Step != StepFallback {
		t.Fatalf("lead with max 1 should fall back after first failure, got %s", d.Step)
	}
}

func TestPolicyIntervalClampsPastSequence(t *testing.T) {
	if got := testPolicy.Interval(0); got != 1*time.Hour {
		t.Fatalf("interval(0) = %v", got)
	}
	if got := testPolicy.Interval(3); got != 24*time.Hour {
		t.Fatalf("interval(3) = %v", got)
	}
	if got := testPolicy.Interval(10); got != 24*time.Hour {
		t.Fatalf("interval past sequence should clamp to last, got %v", got)
	}
}
