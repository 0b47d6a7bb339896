package leadstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadColumns = `
	id, name, phone, whatsapp_number, email, engagement_status,
	retry_count, next_retry_time, max_retry_count, active_call_id,
	fallback_sent, last_engagement_time, terminal_outcome, summary,
	created_at, updated_at`

// Repository is the PostgreSQL-backed lead store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new lead repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.Name, &l.Phone, &l.WhatsAppNumber, &l.Email, &l.Status,
		&l.RetryCount, &l.NextRetryTime, &l.MaxRetryCount, &l.ActiveCallID,
		&l.FallbackSent, &l.LastEngagementTime, &l.TerminalOutcome, &l.Summary,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Get retrieves a lead by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// GetByCallID retrieves the lead whose active call matches callID.
func (r *Repository) GetByCallID(ctx context.Context, callID string) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE active_call_id = $1`, callID)
	return scanLead(row)
}

// Create inserts a new lead.
func (r *Repository) Create(ctx context.Context, lead *Lead) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO leads (id, name, phone, whatsapp_number, email, engagement_status, max_retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, lead.ID, lead.Name, lead.Phone, lead.WhatsAppNumber, lead.Email, lead.Status, lead.MaxRetryCount).
		Scan(&lead.CreatedAt, &lead.UpdatedAt)
}

// List returns leads ordered by creation time, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// Delete removes a lead.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BeginCall claims the outstanding-call slot for one attempt.
func (r *Repository) BeginCall(ctx context.Context, id uuid.UUID, callID string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET active_call_id = $2,
		    engagement_status = $3,
		    next_retry_time = NULL,
		    last_engagement_time = $4,
		    updated_at = now()
		WHERE id = $1 AND active_call_id IS NULL
	`, id, callID, StatusInitiated, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SwapCallID replaces the active call id while the slot stays held.
func (r *Repository) SwapCallID(ctx context.Context, id uuid.UUID, oldCallID, newCallID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET active_call_id = $3, updated_at = now()
		WHERE id = $1 AND active_call_id = $2
	`, id, oldCallID, newCallID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClearCall releases the outstanding-call slot held by callID.
func (r *Repository) ClearCall(ctx context.Context, id uuid.UUID, callID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET active_call_id = NULL, updated_at = now()
		WHERE id = $1 AND active_call_id = $2
	`, id, callID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecordOutcome writes the decision result for one finished attempt.
func (r *Repository) RecordOutcome(ctx context.Context, id uuid.UUID, out Outcome) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET engagement_status = $2,
		    retry_count = $3,
		    next_retry_time = $4,
		    terminal_outcome = COALESCE(terminal_outcome, $5),
		    summary = COALESCE($6, summary),
		    last_engagement_time = now(),
		    updated_at = now()
		WHERE id = $1
	`, id, out.Status, out.RetryCount, out.NextRetryTime, out.TerminalOutcome, out.Summary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus updates only the engagement status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status EngagementStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET engagement_status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFallbackSent flips fallback_sent once.
func (r *Repository) MarkFallbackSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET fallback_sent = TRUE, updated_at = now()
		WHERE id = $1 AND fallback_sent = FALSE
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListDueForRetry returns ids of leads eligible for a retry attempt.
func (r *Repository) ListDueForRetry(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id
		FROM leads
		WHERE engagement_status IN ($1, $2)
		  AND next_retry_time IS NOT NULL
		  AND next_retry_time <= $3
		  AND retry_count < max_retry_count
		  AND active_call_id IS NULL
		  AND fallback_sent = FALSE
		ORDER BY next_retry_time
	`, StatusMissed, StatusFailed, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStuck returns leads still initiated whose attempt started before
// the cutoff.
func (r *Repository) ListStuck(ctx context.Context, cutoff time.Time) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE engagement_status = $1
		  AND active_call_id IS NOT NULL
		  AND last_engagement_time IS NOT NULL
		  AND last_engagement_time < $2
		ORDER BY last_engagement_time
	`, StatusInitiated, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

var _ Store = (*Repository)(nil)
