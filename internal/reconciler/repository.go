package reconciler

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the processed-report ledger that makes report
// handling idempotent across the webhook path and the sweep.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new reconciler repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// MarkProcessed claims a call id for processing. Returns false when
// the report for this call was already handled by any path.
func (r *Repository) MarkProcessed(ctx context.Context, callID string, leadID uuid.UUID, outcome, source string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO processed_call_reports (call_id, lead_id, outcome, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (call_id) DO NOTHING
	`, callID, leadID, outcome, source)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
