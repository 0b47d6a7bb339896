package bulk

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository is the PostgreSQL-backed bulk schedule store.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new bulk schedule repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateSchedule inserts the schedule and all its slots in one
// transaction.
func (r *PGRepository) CreateSchedule(ctx context.Context, schedule Schedule, slots []Slot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO bulk_schedules (id, status, requested_start, parallel_calls, batch_interval_seconds, total_leads)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, schedule.ID, schedule.Status, schedule.RequestedStart,
		schedule.ParallelCalls, int(schedule.BatchInterval.Seconds()), schedule.TotalLeads)
	if err != nil {
		return err
	}

	for _, slot := range slots {
		_, err = tx.Exec(ctx, `
			INSERT INTO bulk_schedule_slots (schedule_id, lead_id, slot_index, wave, run_at, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, slot.ScheduleID, slot.LeadID, slot.SlotIndex, slot.Wave, slot.RunAt, slot.Status)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	var intervalSeconds int
	err := row.Scan(&s.ID, &s.Status, &s.RequestedStart, &s.ParallelCalls,
		&intervalSeconds, &s.TotalLeads, &s.CreatedAt, &s.CancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	s.BatchInterval = time.Duration(intervalSeconds) * time.Second
	return &s, nil
}

const scheduleColumns = `
	id, status, requested_start, parallel_calls, batch_interval_seconds,
	total_leads, created_at, cancelled_at`

// GetSchedule retrieves one schedule.
func (r *PGRepository) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM bulk_schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

// ListSchedules returns recent schedules, newest first.
func (r *PGRepository) ListSchedules(ctx context.Context, limit int) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM bulk_schedules
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetProgress returns slot counts and recorded per-lead errors.
func (r *PGRepository) GetProgress(ctx context.Context, id uuid.UUID) (*Progress, error) {
	schedule, err := r.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &Progress{Schedule: *schedule}

	rows, err := r.pool.Query(ctx, `
		SELECT schedule_id, lead_id, slot_index, wave, run_at, status, error
		FROM bulk_schedule_slots
		WHERE schedule_id = $1
		ORDER BY slot_index
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var slot Slot
		if err := rows.Scan(&slot.ScheduleID, &slot.LeadID, &slot.SlotIndex,
			&slot.Wave, &slot.RunAt, &slot.Status, &slot.Error); err != nil {
			return nil, err
		}
		switch slot.Status {
		case SlotScheduled:
			p.Scheduled++
		case SlotDispatched:
			p.Dispatched++
		case SlotSkipped:
			p.Skipped++
		case SlotFailed:
			p.Failed++
		case SlotCancelled:
			p.Cancelled++
		}
		if slot.Error != nil {
			p.Errors = append(p.Errors, slot)
		}
	}
	return p, rows.Err()
}

// RecordSlotResult stores the dispatch result of one slot and rolls
// the schedule status forward: running on first activity, completed
// when no slot is still scheduled.
func (r *PGRepository) RecordSlotResult(ctx context.Context, scheduleID, leadID uuid.UUID, status SlotStatus, slotErr *string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE bulk_schedule_slots
		SET status = $3, error = $4
		WHERE schedule_id = $1 AND lead_id = $2 AND status = $5
	`, scheduleID, leadID, status, slotErr, SlotScheduled)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE bulk_schedules
		SET status = CASE
			WHEN NOT EXISTS (
				SELECT 1 FROM bulk_schedule_slots
				WHERE schedule_id = $1 AND status = $2
			) THEN $3
			ELSE $4
		END
		WHERE id = $1 AND status NOT IN ($3, $5)
	`, scheduleID, SlotScheduled, ScheduleCompleted, ScheduleRunning, ScheduleCancelled)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// MarkCancelled flips a live schedule to cancelled and marks its
// remaining slots.
func (r *PGRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE bulk_schedules
		SET status = $2, cancelled_at = $3
		WHERE id = $1 AND status IN ($4, $5)
	`, id, ScheduleCancelled, at, SchedulePending, ScheduleRunning)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE bulk_schedule_slots
		SET status = $2
		WHERE schedule_id = $1 AND status = $3
	`, id, SlotCancelled, SlotScheduled)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

var _ Repository = (*PGRepository)(nil)
