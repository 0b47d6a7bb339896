package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the PostgreSQL-backed job store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new job repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Enqueue inserts a job. The partial unique index on (lead_id, kind)
// for singleton kinds surfaces as ErrDuplicate.
func (r *Repository) Enqueue(ctx context.Context, job Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orchestrator_jobs (id, kind, lead_id, run_at, schedule_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, job.ID, job.Kind, job.LeadID, job.RunAt, job.ScheduleID, job.Payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ClaimDue removes and returns due jobs. SKIP LOCKED keeps concurrent
// claimers from blocking on or double-claiming the same row.
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	rows, err := r.pool.Query(ctx, `
		DELETE FROM orchestrator_jobs
		WHERE id IN (
			SELECT id FROM orchestrator_jobs
			WHERE run_at <= $1
			ORDER BY run_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, lead_id, run_at, schedule_id, payload, created_at
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// Cancel removes any pending job of the given kind for the lead.
func (r *Repository) Cancel(ctx context.Context, leadID uuid.UUID, kind Kind) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM orchestrator_jobs WHERE lead_id = $1 AND kind = $2
	`, leadID, kind)
	return err
}

// CancelByLead removes every pending job for the lead.
func (r *Repository) CancelByLead(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM orchestrator_jobs WHERE lead_id = $1`, leadID)
	return err
}

// CancelBySchedule removes all not-yet-claimed jobs of a bulk schedule.
func (r *Repository) CancelBySchedule(ctx context.Context, scheduleID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM orchestrator_jobs WHERE schedule_id = $1
	`, scheduleID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListPending returns all pending jobs ordered by run_at.
func (r *Repository) ListPending(ctx context.Context) ([]Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, lead_id, run_at, schedule_id, payload, created_at
		FROM orchestrator_jobs
		ORDER BY run_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows pgx.Rows) ([]Job, error) {
	var out []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Kind, &j.LeadID, &j.RunAt, &j.ScheduleID, &j.Payload, &j.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

var _ Store = (*Repository)(nil)
