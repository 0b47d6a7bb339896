package email

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reply is an inbound email that was matched to a lead.
type Reply struct {
	ID          uuid.UUID `json:"id"`
	LeadID      uuid.UUID `json:"leadId"`
	MessageID   string    `json:"messageId"`
	FromAddress string    `json:"fromAddress"`
	Subject     string    `json:"subject"`
	ReceivedAt  time.Time `json:"receivedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RepliesRepository persists matched inbound replies.
type RepliesRepository struct {
	db *pgxpool.Pool
}

func NewRepliesRepository(db *pgxpool.Pool) *RepliesRepository {
	return &RepliesRepository{db: db}
}

// Record stores a reply. Duplicate message ids are ignored so a noisy
// mailbox or a restarted poller never double-records; returns whether
// the row was inserted.
func (r *RepliesRepository) Record(ctx context.Context, reply Reply) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO lead_replies (id, lead_id, message_id, from_address, subject, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING`,
		uuid.New(), reply.LeadID, reply.MessageID, reply.FromAddress, reply.Subject, reply.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record lead reply: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByLead returns replies for a lead, newest first.
func (r *RepliesRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Reply, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, message_id, from_address, subject, received_at, created_at
		FROM lead_replies
		WHERE lead_id = $1
		ORDER BY received_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead replies: %w", err)
	}
	defer rows.Close()

	var replies []Reply
	for rows.Next() {
		var reply Reply
		if err := rows.Scan(&reply.ID, &reply.LeadID, &reply.MessageID, &reply.FromAddress, &reply.Subject, &reply.ReceivedAt, &reply.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead reply: %w", err)
		}
		replies = append(replies, reply)
	}
	return replies, rows.Err()
}
