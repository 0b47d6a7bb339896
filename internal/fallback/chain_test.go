package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"leadcall_backend/internal/leadstore"
	"leadcall_backend/platform/logger"
)

type fakeWhatsApp struct {
	enabled  bool
	err      error
	sent     int
	lastTo   string
	lastBody string
}

func (f *fakeWhatsApp) Enabled() bool { return f.enabled }

func (f *fakeWhatsApp) SendMessage(_ context.Context, phone, message string) error {
	f.sent++
	f.lastTo = phone
	f.lastBody = message
	return f.err
}

type fakeEmail struct {
	enabled bool
	err     error
	sent    int
	lastTo  string
}

func (f *fakeEmail) Enabled() bool { return f.enabled }

func (f *fakeEmail) SendFollowUp(_ context.Context, toEmail, _, _ string) error {
	f.sent++
	f.lastTo = toEmail
	return f.err
}

func testLead() *leadstore.Lead {
	return &leadstore.Lead{
		ID:    uuid.New(),
		Name:  "Eva",
		Phone: "+31612345678",
		Email: "eva@example.com",
	}
}

func TestChainPrefersWhatsApp(t *testing.T) {
	wa := &fakeWhatsApp{enabled: true}
	mail := &fakeEmail{enabled: true}
	chain := NewChain(wa, mail, "Hi {name}, we missed you.", logger.New("development"))

	channel, err := chain.Send(context.Background(), testLead())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if channel != "whatsapp" {
		t.Fatalf("expected whatsapp, got %s", channel)
	}
	if wa.sent != 1 || mail.sent != 0 {
		t.Fatalf("unexpected sends: whatsapp=%d email=%d", wa.sent, mail.sent)
	}
	if wa.lastBody != "Hi Eva, we missed you." {
		t.Fatalf("template not rendered: %q", wa.lastBody)
	}
}

func TestChainUsesWhatsAppNumberWhenPresent(t *testing.T) {
	wa := &fakeWhatsApp{enabled: true}
	chain := NewChain(wa, &fakeEmail{}, "hi {name}", logger.New("development"))

	lead := testLead()
	lead.WhatsAppNumber = "+31687654321"
	if _, err := chain.Send(context.Background(), lead); err != nil {
		t.Fatal(err)
	}
	if wa.lastTo != "+31687654321" {
		t.Fatalf("expected dedicated whatsapp number, got %s", wa.lastTo)
	}
}

func TestChainFallsThroughToEmail(t *testing.T) {
	wa := &fakeWhatsApp{enabled: true, err: errors.New("gateway down")}
	mail := &fakeEmail{enabled: true}
	chain := NewChain(wa, mail, "hi {name}", logger.New("development"))

	channel, err := chain.Send(context.Background(), testLead())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if channel != "email" {
		t.Fatalf("expected email after whatsapp failure, got %s", channel)
	}
	if mail.lastTo != "eva@example.com" {
		t.Fatalf("unexpected recipient %s", mail.lastTo)
	}
}

func TestChainSkipsDisabledWhatsApp(t *testing.T) {
	wa := &fakeWhatsApp{enabled: false}
	mail := &fakeEmail{enabled: true}
	chain := NewChain(wa, mail, "hi {name}", logger.New("development"))

	channel, err := chain.Send(context.Background(), testLead())
	if err != nil {
		t.Fatal(err)
	}
	if channel != "email" || wa.sent != 0 {
		t.Fatalf("disabled channel was used: channel=%s sends=%d", channel, wa.sent)
	}
}

func TestChainErrorsWhenNoChannelAccepts(t *testing.T) {
	wa := &fakeWhatsApp{enabled: true, err: errors.New("down")}
	mail := &fakeEmail{enabled: true, err: errors.New("down too")}
	chain := NewChain(wa, mail, "hi {name}", logger.New("development"))

	_, err := chain.Send(context.Background(), testLead())
	if !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}
}

func TestChainSkipsEmailWithoutAddress(t *testing.T) {
	mail := &fakeEmail{enabled: true}
	chain := NewChain(&fakeWhatsApp{}, mail, "hi {name}", logger.New("development"))

	lead := testLead()
	lead.Email = ""
	_, err := chain.Send(context.Background(), lead)
	if !errors.Is(err, ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}
	if mail.sent != 0 {
		t.Fatal("email sent to lead without address")
	}
}
