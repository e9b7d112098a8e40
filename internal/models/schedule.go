package models

import (
	"fmt"
	"time"

	"github.com/crucial707/a11y-monitor/internal/recurrence"
)

// Schedule represents one recurring accessibility scan-and-report subscription
// for a monitored page. NextRunAt is always derived from the recurrence fields
// via the calculator; only the control loop (advance) and owner edits
// (reschedule) write it.
type Schedule struct {
	ID                  int        `json:"id"`
	OwnerID             int        `json:"owner_id"`
	TargetURL           string     `json:"target_url"`
	Timezone            string     `json:"timezone"`
	Frequency           string     `json:"frequency"`
	DaysOfWeek          []int      `json:"days_of_week,omitempty"`
	DayOfMonth          int        `json:"day_of_month,omitempty"`
	TimeOfDay           string     `json:"time_of_day"`
	StartsAt            *time.Time `json:"starts_at,omitempty"`
	EndsAt              *time.Time `json:"ends_at,omitempty"`
	Enabled             bool       `json:"enabled"`
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	NextRunAt           time.Time  `json:"next_run_at"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Recipients          []string   `json:"recipients,omitempty"`
	ReportFormat        string     `json:"report_format"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// RecurrenceSpec builds the calculator input from the stored row, resolving
// the IANA timezone name.
func (s *Schedule) RecurrenceSpec() (recurrence.Spec, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return recurrence.Spec{}, fmt.Errorf("schedule %d: timezone %q: %w", s.ID, s.Timezone, err)
	}
	days := make([]time.Weekday, 0, len(s.DaysOfWeek))
	for _, d := range s.DaysOfWeek {
		days = append(days, time.Weekday(d))
	}
	return recurrence.Spec{
		Frequency:  recurrence.Frequency(s.Frequency),
		DaysOfWeek: days,
		DayOfMonth: s.DayOfMonth,
		TimeOfDay:  s.TimeOfDay,
		Location:   loc,
		StartsAt:   s.StartsAt,
		EndsAt:     s.EndsAt,
	}, nil
}
