package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/crucial707/a11y-monitor/internal/models"
)

// ClaimResult is the tri-state outcome of the insert-if-absent claim.
type ClaimResult int

const (
	// Claimed means this caller owns the occurrence and must run it.
	Claimed ClaimResult = iota
	// AlreadyClaimed means a concurrent or retried tick got there first;
	// skip without error and still advance the schedule.
	AlreadyClaimed
)

// RunRepo persists report runs, the append-only occurrence log.
type RunRepo struct {
	db Querier
}

// NewRunRepo returns a new RunRepo.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// WithTx returns a copy of the repo bound to tx.
func (r *RunRepo) WithTx(tx *sql.Tx) *RunRepo {
	return &RunRepo{db: tx}
}

// Claim atomically inserts the run row for (scheduleID, windowKey). ON
// CONFLICT DO NOTHING keeps the surrounding transaction usable when another
// tick already holds the occurrence, so the caller can still advance the
// schedule in the same transaction.
func (r *RunRepo) Claim(ctx context.Context, scheduleID int, windowKey string, startedAt time.Time) (int, ClaimResult, error) {
	var id int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO report_runs (schedule_id, window_key, status, started_at)
		VALUES ($1, $2, 'running', $3)
		ON CONFLICT (schedule_id, window_key) DO NOTHING
		RETURNING id`,
		scheduleID, windowKey, startedAt,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, AlreadyClaimed, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return id, Claimed, nil
}

// Finish finalizes a run. Completion fields are written once; the row is
// never touched again.
func (r *RunRepo) Finish(ctx context.Context, id int, status string, score *float64, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE report_runs
		SET status = $2, completed_at = now(), score = $3, error = $4
		WHERE id = $1`,
		id, status, score, nullString(errMsg),
	)
	return err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ListBySchedule returns a schedule's run history, newest first.
func (r *RunRepo) ListBySchedule(ctx context.Context, scheduleID, limit, offset int) ([]models.ReportRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schedule_id, window_key, status, started_at, completed_at, score, error
		FROM report_runs
		WHERE schedule_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		scheduleID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ReportRun
	for rows.Next() {
		var run models.ReportRun
		var completedAt sql.NullTime
		var score sql.NullFloat64
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.ScheduleID, &run.WindowKey, &run.Status,
			&run.StartedAt, &completedAt, &score, &errMsg); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		if score.Valid {
			run.Score = &score.Float64
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

// CountBySchedule returns the number of recorded runs for a schedule.
func (r *RunRepo) CountBySchedule(ctx context.Context, scheduleID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM report_runs WHERE schedule_id = $1`, scheduleID).Scan(&n)
	return n, err
}
