// Package engine implements the per-lead engagement workflow: decide
// whether to call, schedule a retry, trigger the fallback chain, or
// stop, based on attempt outcomes that arrive asynchronously.
package engine

import "time"

// RetryPolicy maps a retry count to the wait before the next attempt.
type RetryPolicy struct {
	// Intervals is the ordered backoff sequence. Interval(n) is used
	// after the n-th failed attempt (1-based).
	Intervals []time.Duration
	// MaxRetryCount is the default attempt ceiling for leads that do
	// not carry their own.
	MaxRetryCount int
}

// Interval returns the wait after attempt number attempts (1-based).
// Counts past the end of the sequence reuse the last interval.
func (p RetryPolicy) Interval(attempts int) time.Duration {
	if len(p.Intervals) == 0 {
		return 0
	}
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Intervals) {
		idx = len(p.Intervals) - 1
	}
	return p.Intervals[idx]
}

// MaxFor returns the attempt ceiling for a lead, falling back to the
// policy default when the lead carries none.
func (p RetryPolicy) MaxFor(leadMax int) int {
	if leadMax > 0 {
		return leadMax
	}
	return p.MaxRetryCount
}
