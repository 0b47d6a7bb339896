package callprovider

import (
	"errors"
	"testing"
)

func TestParseEventStatusUpdate(t *testing.T) {
	body := []byte(`{"message":{"type":"status-update","status":"in-progress","call":{"id":"call-123"}}}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	status, ok := ev.(StatusEvent)
	if !ok {
		t.Fatalf("expected StatusEvent, got %T", ev)
	}
	if status.ID != "call-123" || status.Status != "in-progress" {
		t.Fatalf("unexpected event: %+v", status)
	}
}

func TestParseEventEndOfCallReport(t *testing.T) {
	body := []byte(`{"message":{
		"type":"end-of-call-report",
		"endedReason":"customer-did-not-answer",
		"call":{"id":"call-456"},
		"analysis":{"summary":"no contact"}
	}}`)
	ev, err := ParseEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	report, ok := ev.(ReportEvent)
	if !ok {
		t.Fatalf("expected ReportEvent, got %T", ev)
	}
	if report.ID != "call-456" {
		t.Fatalf("unexpected call id %q", report.ID)
	}
	if report.EndedReason != "customer-did-not-answer" {
		t.Fatalf("unexpected reason %q", report.EndedReason)
	}
	if report.Summary != "no contact" {
		t.Fatalf("unexpected summary %q", report.Summary)
	}
	if len(report.Raw) == 0 {
		t.Fatal("raw payload should be retained for archiving")
	}
}

func TestParseEventRejectsUnknownType(t *testing.T) {
	body := []byte(`{"message":{"type":"transcript","call":{"id":"call-789"}}}`)
	_, err := ParseEvent(body)
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestParseEventRejectsMalformedPayloads(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{}`),
		[]byte(`{"message":{"type":"status-update"}}`),
		[]byte(`{"message":{"type":"status-update","call":{"id":"x"}}}`),
	}
	for i, body := range cases {
		if _, err := ParseEvent(body); !errors.Is(err, ErrMalformedEvent) {
			t.Fatalf("case %d: expected ErrMalformedEvent, got %v", i, err)
		}
	}
}
