package models

import "time"

// Run statuses. A run row is created at claim time with StatusRunning and
// finalized exactly once; the row is the append-only audit trail and, via the
// unique (schedule_id, window_key) index, the idempotency fence.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// ReportRun is one attempted occurrence of a schedule.
type ReportRun struct {
	ID          int        `json:"id"`
	ScheduleID  int        `json:"schedule_id"`
	WindowKey   string     `json:"window_key"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	Error       string     `json:"error,omitempty"`
}
