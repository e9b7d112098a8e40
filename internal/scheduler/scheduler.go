// Package scheduler implements the due-job control loop: select due
// schedules, claim each occurrence through the run table's uniqueness
// constraint, execute the scan/delivery pipeline, and advance schedule state.
// Overlapping or retried ticks are safe; the claim insert is the only
// synchronization point.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/crucial707/a11y-monitor/internal/metrics"
	"github.com/crucial707/a11y-monitor/internal/models"
	"github.com/crucial707/a11y-monitor/internal/pipeline"
	"github.com/crucial707/a11y-monitor/internal/recurrence"
	"github.com/crucial707/a11y-monitor/internal/repo"
	"github.com/robfig/cron/v3"
)

// DefaultBatchSize caps due schedules per tick when the Runner is not configured.
const DefaultBatchSize = 50

// DefaultFailureThreshold auto-disables a schedule after this many consecutive
// pipeline failures.
const DefaultFailureThreshold = 5

// tickTimeout bounds one whole tick, including pipeline calls.
const tickTimeout = 10 * time.Minute

// Runner executes ticks. All fields must be set before the first Tick.
type Runner struct {
	DB        *sql.DB
	Schedules *repo.ScheduleRepo
	Runs      *repo.RunRepo
	Audit     *repo.AuditRepo
	Scanner   pipeline.Scanner
	Deliverer pipeline.Deliverer

	BatchSize        int
	FailureThreshold int
}

func (r *Runner) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return DefaultBatchSize
}

func (r *Runner) failureThreshold() int {
	if r.FailureThreshold > 0 {
		return r.FailureThreshold
	}
	return DefaultFailureThreshold
}

// Tick performs one control loop pass at time now. A store error before
// selection aborts the tick; per-schedule errors are logged and isolated so
// one broken schedule cannot stall the rest of the batch.
func (r *Runner) Tick(ctx context.Context) error {
	started := time.Now()
	metrics.TicksTotal.Inc()
	defer func() {
		metrics.TickDuration.Observe(time.Since(started).Seconds())
	}()

	now := started

	// Sweep schedules whose window closed without a tick ever selecting them
	// (e.g. downtime across the close): ListDue filters them out, so nothing
	// downstream would ever disable them.
	expired, err := r.Schedules.DisableExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("disable expired schedules: %w", err)
	}
	for _, id := range expired {
		metrics.AutoDisablesTotal.WithLabelValues("window_closed").Inc()
		r.auditLog(ctx, "auto_disable", id, "validity window ended")
		slog.Info("scheduler: expired schedule disabled", "schedule_id", id)
	}

	due, err := r.Schedules.ListDue(ctx, now, r.batchSize())
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	for _, s := range due {
		if err := r.process(ctx, &s, now); err != nil {
			slog.Error("scheduler: process schedule",
				"schedule_id", s.ID, "target_url", s.TargetURL, "error", err)
		}
	}
	return nil
}

// process handles one due schedule: derive the occurrence key, claim it and
// advance the schedule in a single transaction, then (if the claim won) run
// the pipeline and record the outcome.
func (r *Runner) process(ctx context.Context, s *models.Schedule, now time.Time) error {
	spec, err := s.RecurrenceSpec()
	if err != nil {
		// A stored row with a bad timezone is an operator problem, not a
		// pipeline failure; skip without touching the failure counter.
		return err
	}

	key := recurrence.WindowKey(s.NextRunAt, spec.Location)
	next, stillActive, err := recurrence.Next(spec, now)
	if err != nil {
		return fmt.Errorf("compute next run: %w", err)
	}

	// The claim and the advance commit or roll back together: the store never
	// holds a claimed run for a schedule left un-advanced, or vice versa.
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	runID, claim, err := r.Runs.WithTx(tx).Claim(ctx, s.ID, key, now)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("claim occurrence %s: %w", key, err)
	}
	if err := r.Schedules.WithTx(tx).Advance(ctx, s.ID, now, next, stillActive); err != nil {
		tx.Rollback()
		return fmt.Errorf("advance schedule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit claim: %w", err)
	}

	if !stillActive {
		metrics.AutoDisablesTotal.WithLabelValues("window_closed").Inc()
		r.auditLog(ctx, "auto_disable", s.ID, "validity window ended at "+next.Format(time.RFC3339))
		slog.Info("scheduler: schedule window closed, disabled",
			"schedule_id", s.ID, "ends_at", next)
	}

	if claim == repo.AlreadyClaimed {
		metrics.ClaimSkipsTotal.Inc()
		slog.Info("scheduler: occurrence already claimed, skipped",
			"schedule_id", s.ID, "window_key", key)
		return nil
	}

	r.execute(ctx, s, runID)
	return nil
}

// execute runs the scan and delivery pipeline for a claimed run and records
// the result. Pipeline failures are recorded, never returned: retry happens on
// the next natural occurrence, not within the tick.
func (r *Runner) execute(ctx context.Context, s *models.Schedule, runID int) {
	result, err := r.Scanner.Scan(ctx, s.TargetURL)
	if err == nil {
		err = r.Deliverer.Deliver(ctx, result, pipeline.DeliveryConfig{
			Recipients: s.Recipients,
			Format:     s.ReportFormat,
		})
	}

	if err != nil {
		if ferr := r.Runs.Finish(ctx, runID, models.RunStatusFailed, nil, err.Error()); ferr != nil {
			slog.Error("scheduler: finalize failed run", "run_id", runID, "error", ferr)
		}
		failures, enabled, ferr := r.Schedules.RecordFailure(ctx, s.ID, r.failureThreshold())
		if ferr != nil {
			slog.Error("scheduler: record failure", "schedule_id", s.ID, "error", ferr)
		} else if !enabled {
			metrics.AutoDisablesTotal.WithLabelValues("failure_threshold").Inc()
			r.auditLog(ctx, "auto_disable", s.ID,
				fmt.Sprintf("disabled after %d consecutive failures", failures))
			slog.Warn("scheduler: schedule auto-disabled",
				"schedule_id", s.ID, "consecutive_failures", failures)
		}
		metrics.RunsTotal.WithLabelValues(models.RunStatusFailed).Inc()
		slog.Error("scheduler: pipeline failed",
			"schedule_id", s.ID, "run_id", runID, "error", err)
		return
	}

	if ferr := r.Runs.Finish(ctx, runID, models.RunStatusSuccess, &result.Score, ""); ferr != nil {
		slog.Error("scheduler: finalize run", "run_id", runID, "error", ferr)
	}
	if ferr := r.Schedules.ResetFailures(ctx, s.ID); ferr != nil {
		slog.Error("scheduler: reset failures", "schedule_id", s.ID, "error", ferr)
	}
	metrics.RunsTotal.WithLabelValues(models.RunStatusSuccess).Inc()
	slog.Info("scheduler: run completed",
		"schedule_id", s.ID, "run_id", runID, "score", result.Score)
}

func (r *Runner) auditLog(ctx context.Context, action string, scheduleID int, details string) {
	if r.Audit == nil {
		return
	}
	if err := r.Audit.Log(ctx, 0, action, "schedule", scheduleID, details); err != nil {
		slog.Error("scheduler: audit log", "schedule_id", scheduleID, "error", err)
	}
}

// Start launches the in-process trigger: a cron entry fires one tick per
// minute. The returned cron can be stopped for graceful shutdown; an in-flight
// tick finishes its batch.
func Start(r *Runner) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
		defer cancel()
		if err := r.Tick(ctx); err != nil {
			slog.Error("scheduler: tick aborted", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("register tick entry: %w", err)
	}
	c.Start()
	slog.Info("scheduler: started, ticking every minute")
	return c, nil
}
