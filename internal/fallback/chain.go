// Package fallback implements the secondary-channel chain used after
// call retries are exhausted: WhatsApp first, then email. The chain
// runs at most once per lead; channel failures degrade to the next
// channel and never feed back into the call retry loop.
package fallback

import (
	"context"
	"errors"
	"strings"

	"leadcall_backend/internal/leadstore"
	"leadcall_backend/platform/logger"
)

// ErrNoChannel is returned when no configured channel could accept the
// message.
var ErrNoChannel = errors.New("no fallback channel available for lead")

// WhatsAppSender is the WhatsApp gateway slice the chain needs.
type WhatsAppSender interface {
	Enabled() bool
	SendMessage(ctx context.Context, phone, message string) error
}

// EmailSender is the email slice the chain needs.
type EmailSender interface {
	Enabled() bool
	SendFollowUp(ctx context.Context, toEmail, name, leadID string) error
}

// Chain tries each channel in order until one accepts the message.
type Chain struct {
	whatsapp WhatsAppSender
	email    EmailSender
	template string
	log      *logger.Logger
}

// NewChain creates the fallback chain. template supports a {name}
// placeholder.
func NewChain(whatsapp WhatsAppSender, email EmailSender, template string, log *logger.Logger) *Chain {
	return &Chain{whatsapp: whatsapp, email: email, template: template, log: log}
}

// Send delivers the follow-up message over the first channel that
// accepts it and returns that channel's name.
func (c *Chain) Send(ctx context.Context, lead *leadstore.Lead) (string, error) {
	log := c.log.WithLeadID(lead.ID.String())

	if c.whatsapp != nil && c.whatsapp.Enabled() {
		number := lead.WhatsAppNumber
		if number == "" {
			number = lead.Phone
		}
		if number != "" {
			message := renderTemplate(c.template, lead.Name)
			if err := c.whatsapp.SendMessage(ctx, number, message); err == nil {
				return "whatsapp", nil
			} else {
				log.Warn("whatsapp fallback failed, trying email", "error", err.Error())
			}
		}
	}

	if c.email != nil && c.email.Enabled() && lead.Email != "" {
		if err := c.email.SendFollowUp(ctx, lead.Email, lead.Name, lead.ID.String()); err == nil {
			return "email", nil
		} else {
			log.Warn("email fallback failed", "error", err.Error())
		}
	}

	return "", ErrNoChannel
}

func renderTemplate(template, name string) string {
	if name == "" {
		name = "there"
	}
	return strings.ReplaceAll(template, "{name}", name)
}
