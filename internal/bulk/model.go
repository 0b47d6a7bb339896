// Package bulk expands a bulk-call request into individually
// time-sliced batch slot jobs that respect the provider's concurrency
// cap.
package bulk

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleStatus is the lifecycle state of a bulk schedule.
type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleRunning   ScheduleStatus = "running"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// Schedule is one bulk-call request.
type Schedule struct {
	ID             uuid.UUID      `json:"id"`
	Status         ScheduleStatus `json:"status"`
	RequestedStart time.Time      `json:"requestedStart"`
	ParallelCalls  int            `json:"parallelCalls"`
	BatchInterval  time.Duration  `json:"batchInterval"`
	TotalLeads     int            `json:"totalLeads"`
	CreatedAt      time.Time      `json:"createdAt"`
	CancelledAt    *time.Time     `json:"cancelledAt,omitempty"`
}

// SlotStatus tracks one lead's slot within a schedule.
type SlotStatus string

const (
	SlotScheduled  SlotStatus = "scheduled"
	SlotDispatched SlotStatus = "dispatched"
	SlotSkipped    SlotStatus = "skipped"
	SlotFailed     SlotStatus = "failed"
	SlotCancelled  SlotStatus = "cancelled"
)

// Slot is one lead's position in a schedule.
type Slot struct {
	ScheduleID uuid.UUID  `json:"scheduleId"`
	LeadID     uuid.UUID  `json:"leadId"`
	SlotIndex  int        `json:"slotIndex"`
	Wave       int        `json:"wave"`
	RunAt      time.Time  `json:"runAt"`
	Status     SlotStatus `json:"status"`
	Error      *string    `json:"error,omitempty"`
}

// Progress is the observable state of a schedule.
type Progress struct {
	Schedule   Schedule `json:"schedule"`
	Waves      int      `json:"waves"`
	Scheduled  int      `json:"scheduled"`
	Dispatched int      `json:"dispatched"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Cancelled  int      `json:"cancelled"`
	Errors     []Slot   `json:"errors,omitempty"`
}

// WaveFor returns the wave index of the lead at position index when
// leads are grouped into waves of parallelCalls, preserving input
// order.
func WaveFor(index, parallelCalls int) int {
	return index / parallelCalls
}

// RunAtFor returns the dispatch time of a wave.
func RunAtFor(start time.Time, wave int, interval time.Duration) time.Time {
	return start.Add(time.Duration(wave) * interval)
}

// Waves returns the number of waves needed for total leads.
func Waves(total, parallelCalls int) int {
	if total == 0 {
		return 0
	}
	return (total + parallelCalls - 1) / parallelCalls
}
