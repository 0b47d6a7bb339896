// Package email sends the fallback follow-up email over SMTP and polls
// the inbox for lead replies.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"leadcall_backend/platform/config"
)

// LeadHeader carries the lead id on outgoing mail so inbound replies
// can be matched without parsing free text.
const LeadHeader = "X-Lead-UUID"

//go:embed templates/*.html
var templateFS embed.FS

var emailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type followUpData struct {
	Name string
}

// Sender delivers fallback email via the configured SMTP server.
// A nil sender (no SMTP configured) refuses to send.
type Sender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	subject   string
}

// NewSender creates an SMTP sender, or nil when email is not configured.
func NewSender(cfg config.EmailConfig) *Sender {
	if !cfg.GetEmailEnabled() {
		return nil
	}
	return &Sender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		subject:   cfg.GetEmailSubject(),
	}
}

// Enabled reports whether SMTP is configured.
func (s *Sender) Enabled() bool { return s != nil }

// SendFollowUp sends the missed-call follow-up email to a lead. The
// subject carries a [Lead:<uuid>] tag as a fallback matcher for mail
// clients that strip custom headers from replies.
func (s *Sender) SendFollowUp(ctx context.Context, toEmail, name, leadID string) error {
	if s == nil {
		return fmt.Errorf("email sender not configured")
	}

	var body bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&body, "follow_up.html", followUpData{Name: name}); err != nil {
		return fmt.Errorf("render follow-up email: %w", err)
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(fmt.Sprintf("%s [Lead:%s]", s.subject, leadID))
	msg.SetGenHeader(LeadHeader, leadID)
	msg.SetBodyString(gomail.TypeTextHTML, body.String())

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
