package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/crucial707/a11y-monitor/internal/models"
	"github.com/lib/pq"
)

const scheduleColumns = `id, owner_id, target_url, timezone, frequency, days_of_week,
	day_of_month, time_of_day, starts_at, ends_at, enabled, last_run_at, next_run_at,
	consecutive_failures, recipients, report_format, created_at, updated_at`

// ScheduleRepo persists scan-and-report schedules.
type ScheduleRepo struct {
	db Querier
}

// NewScheduleRepo returns a new ScheduleRepo.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

// WithTx returns a copy of the repo bound to tx.
func (r *ScheduleRepo) WithTx(tx *sql.Tx) *ScheduleRepo {
	return &ScheduleRepo{db: tx}
}

func scanSchedule(row interface{ Scan(...any) error }) (*models.Schedule, error) {
	s := &models.Schedule{}
	var days pq.Int64Array
	var startsAt, endsAt, lastRunAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.TargetURL, &s.Timezone, &s.Frequency, &days,
		&s.DayOfMonth, &s.TimeOfDay, &startsAt, &endsAt, &s.Enabled, &lastRunAt,
		&s.NextRunAt, &s.ConsecutiveFailures, pq.Array(&s.Recipients),
		&s.ReportFormat, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		s.DaysOfWeek = append(s.DaysOfWeek, int(d))
	}
	if startsAt.Valid {
		s.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		s.EndsAt = &endsAt.Time
	}
	if lastRunAt.Valid {
		s.LastRunAt = &lastRunAt.Time
	}
	return s, nil
}

func daysArg(days []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(days))
	for _, d := range days {
		out = append(out, int64(d))
	}
	return out
}

// Create inserts a new schedule and fills in id and timestamps. next_run_at
// must already be computed by the caller.
func (r *ScheduleRepo) Create(ctx context.Context, s *models.Schedule) error {
	query := `
		INSERT INTO schedules (owner_id, target_url, timezone, frequency, days_of_week,
			day_of_month, time_of_day, starts_at, ends_at, enabled, next_run_at,
			recipients, report_format)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		s.OwnerID, s.TargetURL, s.Timezone, s.Frequency, daysArg(s.DaysOfWeek),
		s.DayOfMonth, s.TimeOfDay, s.StartsAt, s.EndsAt, s.Enabled, s.NextRunAt,
		pq.Array(s.Recipients), s.ReportFormat,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns one schedule by id, or nil if not found.
func (r *ScheduleRepo) GetByID(ctx context.Context, id int) (*models.Schedule, error) {
	s, err := scanSchedule(r.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByOwner returns the owner's schedules, most recent first.
func (r *ScheduleRepo) ListByOwner(ctx context.Context, ownerID, limit, offset int) ([]models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE owner_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// CountByOwner returns the number of schedules the owner has.
func (r *ScheduleRepo) CountByOwner(ctx context.Context, ownerID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedules WHERE owner_id = $1`, ownerID).Scan(&n)
	return n, err
}

// ListDue returns enabled, due, in-window schedules ordered by next_run_at
// then id, capped at limit. The cap is the per-tick back-pressure control.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = true
		  AND next_run_at <= $1
		  AND (ends_at IS NULL OR ends_at > $1)
		ORDER BY next_run_at, id
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// DisableExpired flips off enabled schedules whose validity window has
// already closed, returning the affected ids. This catches windows that
// closed while no tick selected the row (scheduler downtime across the
// close); windows that close during a selected occurrence are handled by
// Advance's stillActive instead.
func (r *ScheduleRepo) DisableExpired(ctx context.Context, now time.Time) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE schedules
		SET enabled = false, updated_at = now()
		WHERE enabled = true AND ends_at IS NOT NULL AND ends_at <= $1
		RETURNING id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update rewrites the owner-editable fields and the recomputed next_run_at.
func (r *ScheduleRepo) Update(ctx context.Context, s *models.Schedule) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET target_url = $2, timezone = $3, frequency = $4, days_of_week = $5,
			day_of_month = $6, time_of_day = $7, starts_at = $8, ends_at = $9,
			enabled = $10, next_run_at = $11, recipients = $12, report_format = $13,
			updated_at = now()
		WHERE id = $1`,
		s.ID, s.TargetURL, s.Timezone, s.Frequency, daysArg(s.DaysOfWeek),
		s.DayOfMonth, s.TimeOfDay, s.StartsAt, s.EndsAt, s.Enabled, s.NextRunAt,
		pq.Array(s.Recipients), s.ReportFormat,
	)
	return err
}

// Advance moves the schedule past the occurrence just handled: last_run_at to
// now, next_run_at forward, and enabled cleared when the window has closed
// (stillActive=false). GREATEST makes concurrent ticks converge on the later
// of their recomputed next_run_at values regardless of commit order.
func (r *ScheduleRepo) Advance(ctx context.Context, id int, now, nextRunAt time.Time, stillActive bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET last_run_at = $2,
			next_run_at = GREATEST(next_run_at, $3),
			enabled = enabled AND $4,
			updated_at = now()
		WHERE id = $1`,
		id, now, nextRunAt, stillActive,
	)
	return err
}

// RecordFailure increments consecutive_failures and disables the schedule
// when the new count reaches threshold. Returns the new count and enabled state.
func (r *ScheduleRepo) RecordFailure(ctx context.Context, id, threshold int) (failures int, enabled bool, err error) {
	err = r.db.QueryRowContext(ctx, `
		UPDATE schedules
		SET consecutive_failures = consecutive_failures + 1,
			enabled = CASE WHEN consecutive_failures + 1 >= $2 THEN false ELSE enabled END,
			updated_at = now()
		WHERE id = $1
		RETURNING consecutive_failures, enabled`,
		id, threshold,
	).Scan(&failures, &enabled)
	return failures, enabled, err
}

// ResetFailures clears the consecutive failure counter after a success.
func (r *ScheduleRepo) ResetFailures(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE schedules SET consecutive_failures = 0, updated_at = now() WHERE id = $1`, id)
	return err
}

// SetEnabled toggles the gate. Enabling requires a freshly recomputed
// nextRunAt (pass zero time when disabling; it is ignored).
func (r *ScheduleRepo) SetEnabled(ctx context.Context, id int, enabled bool, nextRunAt time.Time) error {
	if enabled {
		_, err := r.db.ExecContext(ctx,
			`UPDATE schedules SET enabled = true, next_run_at = $2, updated_at = now() WHERE id = $1`,
			id, nextRunAt)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE schedules SET enabled = false, updated_at = now() WHERE id = $1`, id)
	return err
}

// Reset is the operator action: re-enable, clear failures, and restart the
// clock from a freshly recomputed nextRunAt.
func (r *ScheduleRepo) Reset(ctx context.Context, id int, nextRunAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET enabled = true, consecutive_failures = 0, next_run_at = $2, updated_at = now()
		WHERE id = $1`,
		id, nextRunAt,
	)
	return err
}

// Delete removes a schedule by id.
func (r *ScheduleRepo) Delete(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return err
}
