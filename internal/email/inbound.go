package email

import (
	"context"
	"regexp"
	"time"

	imap "github.com/BrianLeishman/go-imap"
	"github.com/google/uuid"

	"leadcall_backend/internal/events"
	"leadcall_backend/platform/config"
	"leadcall_backend/platform/logger"
)

// leadTagPattern matches the [Lead:<uuid>] tag the outbound sender puts
// in every follow-up subject. Reply clients preserve the subject, which
// makes the tag the reliable matcher even when custom headers are
// stripped.
var leadTagPattern = regexp.MustCompile(`\[Lead:([0-9a-fA-F-]{36})\]`)

// ReplyRecorder is the persistence slice the poller needs.
type ReplyRecorder interface {
	Record(ctx context.Context, reply Reply) (bool, error)
}

// Poller watches an IMAP folder for replies to follow-up mail and
// records any message it can match back to a lead.
type Poller struct {
	cfg  config.ImapConfig
	repo ReplyRecorder
	bus  events.Bus
	log  *logger.Logger
}

// NewPoller creates the inbound poller. Returns nil when IMAP is not
// configured.
func NewPoller(cfg config.ImapConfig, repo ReplyRecorder, bus events.Bus, log *logger.Logger) *Poller {
	if !cfg.IsImapEnabled() {
		return nil
	}
	return &Poller{cfg: cfg, repo: repo, bus: bus, log: log}
}

// Run polls the mailbox until the context is cancelled. Each cycle
// opens a fresh connection; mail servers drop long-idle sessions and
// reconnecting is cheaper than keepalive bookkeeping.
func (p *Poller) Run(ctx context.Context) {
	interval := p.cfg.GetImapPollInterval()
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.log.Info("inbound mail poller started",
		"folder", p.cfg.GetImapFolder(),
		"interval", interval.String())

	for {
		if err := p.poll(ctx); err != nil {
			p.log.Warn("mailbox poll failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			p.log.Info("inbound mail poller stopped")
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	conn, err := imap.New(p.cfg.GetImapUser(), p.cfg.GetImapPassword(), p.cfg.GetImapHost(), p.cfg.GetImapPort())
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SelectFolder(p.cfg.GetImapFolder()); err != nil {
		return err
	}

	uids, err := conn.GetUIDs("UNSEEN")
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	messages, err := conn.GetEmails(uids...)
	if err != nil {
		return err
	}

	for uid, msg := range messages {
		if msg == nil {
			continue
		}
		p.handleMessage(ctx, msg)
		if err := conn.MarkSeen(uid); err != nil {
			p.log.Warn("failed to mark message seen", "uid", uid, "error", err.Error())
		}
	}
	return nil
}

func (p *Poller) handleMessage(ctx context.Context, msg *imap.Email) {
	leadID, ok := matchLead(msg.Subject)
	if !ok {
		return
	}

	from := ""
	for address := range msg.From {
		from = address
		break
	}

	receivedAt := msg.Received
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	inserted, err := p.repo.Record(ctx, Reply{
		LeadID:      leadID,
		MessageID:   msg.MessageID,
		FromAddress: from,
		Subject:     msg.Subject,
		ReceivedAt:  receivedAt,
	})
	if err != nil {
		p.log.Error("failed to record lead reply", "lead_id", leadID.String(), "error", err.Error())
		return
	}
	if !inserted {
		return
	}

	p.log.Info("lead replied by email", "lead_id", leadID.String(), "from", from)
	p.bus.Publish(ctx, events.EmailReplyReceived{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Subject:   msg.Subject,
	})
}

// matchLead extracts the lead id from a subject tag.
func matchLead(subject string) (uuid.UUID, bool) {
	match := leadTagPattern.FindStringSubmatch(subject)
	if match == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(match[1])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
