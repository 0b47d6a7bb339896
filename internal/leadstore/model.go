// Package leadstore provides access to lead records. It is the only
// writer of the engagement fields (status, retry count, next retry
// time, active call id, fallback flag); all writes that race with the
// webhook path use conditional updates.
package leadstore

import (
	"time"

	"github.com/google/uuid"
)

// EngagementStatus is the lead's position in the engagement lifecycle.
type EngagementStatus string

const (
	StatusPending   EngagementStatus = "pending"
	StatusInitiated EngagementStatus = "initiated"
	StatusAnswered  EngagementStatus = "answered"
	StatusMissed    EngagementStatus = "missed"
	StatusFailed    EngagementStatus = "failed"
	StatusCompleted EngagementStatus = "completed"
)

// Valid reports whether s is a known engagement status.
func (s EngagementStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInitiated, StatusAnswered, StatusMissed, StatusFailed, StatusCompleted:
		return true
	}
	return false
}

// Lead is a contact being engaged.
type Lead struct {
	ID                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	Phone              string           `json:"phone"`
	WhatsAppNumber     string           `json:"whatsappNumber,omitempty"`
	Email              string           `json:"email,omitempty"`
	Status             EngagementStatus `json:"engagementStatus"`
	RetryCount         int              `json:"retryCount"`
	NextRetryTime      *time.Time       `json:"nextRetryTime,omitempty"`
	MaxRetryCount      int              `json:"maxRetryCount"`
	ActiveCallID       *string          `json:"activeCallId,omitempty"`
	FallbackSent       bool             `json:"fallbackSent"`
	LastEngagementTime *time.Time       `json:"lastEngagementTime,omitempty"`
	TerminalOutcome    *string          `json:"terminalOutcome,omitempty"`
	Summary            *string          `json:"summary,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// HasActiveCall reports whether a provider call is currently outstanding.
func (l *Lead) HasActiveCall() bool {
	return l.ActiveCallID != nil && *l.ActiveCallID != ""
}

// Terminal reports whether the lead's engagement has ended.
func (l *Lead) Terminal() bool {
	return l.TerminalOutcome != nil || l.FallbackSent
}
