package callprovider

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrUnknownEvent marks a webhook payload whose message type is not
	// one we handle. Such payloads are quarantined, never processed.
	ErrUnknownEvent = errors.New("unknown provider event type")
	// ErrMalformedEvent marks a payload that does not match the
	// provider envelope at all.
	ErrMalformedEvent = errors.New("malformed provider event")
	// ErrCallNotFound is returned by GetCall for an id the provider
	// does not know.
	ErrCallNotFound = errors.New("provider call not found")
)

// Event is one parsed webhook delivery. The set of variants is closed:
// payloads that fit neither shape are rejected at this boundary and
// untyped data never reaches the workflow.
type Event interface {
	CallID() string
}

// StatusEvent is transient call progress (ringing, in-progress, ...).
// It never carries a terminal decision.
type StatusEvent struct {
	ID     string
	Status string
}

func (e StatusEvent) CallID() string { return e.ID }

// ReportEvent is the end-of-call report, delivered once per call
// attempt (possibly re-delivered). It is the sole source of terminal
// outcomes.
type ReportEvent struct {
	ID          string
	EndedReason string
	Summary     string
	StartedAt   *time.Time
	AnsweredAt  *time.Time
	EndedAt     *time.Time
	Raw         json.RawMessage
}

func (e ReportEvent) CallID() string { return e.ID }

// envelope mirrors the provider's webhook wrapper.
type envelope struct {
	Message struct {
		Type string `json:"type"`
		Call struct {
			ID string `json:"id"`
		} `json:"call"`
		Status      string `json:"status"`
		EndedReason string `json:"endedReason"`
		StartedAt   *time.Time `json:"startedAt"`
		AnsweredAt  *time.Time `json:"answeredAt"`
		EndedAt     *time.Time `json:"endedAt"`
		Analysis    struct {
			Summary string `json:"summary"`
		} `json:"analysis"`
	} `json:"message"`
}

// ParseEvent validates a raw webhook body into one of the closed event
// variants.
func ParseEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformedEvent
	}
	if env.Message.Call.ID == "" {
		return nil, ErrMalformedEvent
	}

	switch env.Message.Type {
	case "status-update":
		if env.Message.Status == "" {
			return nil, ErrMalformedEvent
		}
		return StatusEvent{ID: env.Message.Call.ID, Status: env.Message.Status}, nil
	case "end-of-call-report":
		return ReportEvent{
			ID:          env.Message.Call.ID,
			EndedReason: env.Message.EndedReason,
			Summary:     env.Message.Analysis.Summary,
			StartedAt:   env.Message.StartedAt,
			AnsweredAt:  env.Message.AnsweredAt,
			EndedAt:     env.Message.EndedAt,
			Raw:         json.RawMessage(body),
		}, nil
	default:
		return nil, ErrUnknownEvent
	}
}
