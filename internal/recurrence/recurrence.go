// Package recurrence computes the next absolute run instant for a schedule's
// timezone-local recurrence rule, and derives the idempotency key that names
// one occurrence. Both functions are pure.
package recurrence

import (
	"fmt"
	"time"
)

// Frequency selects the recurrence rule family.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// Frequencies lists the accepted frequency values (for validation messages).
var Frequencies = []Frequency{Daily, Weekly, Monthly}

// Spec is a recurrence rule plus its validity window. DaysOfWeek applies only
// to Weekly; DayOfMonth only to Monthly. TimeOfDay is strict 24h "HH:MM" wall
// clock in Location.
type Spec struct {
	Frequency  Frequency
	DaysOfWeek []time.Weekday
	DayOfMonth int
	TimeOfDay  string
	Location   *time.Location
	StartsAt   *time.Time
	EndsAt     *time.Time
}

// rule is the per-frequency dispatch: the earliest occurrence strictly after
// ref, at hh:mm wall clock in loc. The returned instant uses loc's UTC offset
// at the target date, which keeps results correct across DST transitions.
type rule interface {
	next(ref time.Time, hh, mm int, loc *time.Location) time.Time
}

type dailyRule struct{}

type weeklyRule struct{ days []time.Weekday }

type monthlyRule struct{ day int }

func (s Spec) rule() rule {
	switch s.Frequency {
	case Weekly:
		days := s.DaysOfWeek
		if len(days) == 0 {
			// An empty weekly day set means Monday.
			days = []time.Weekday{time.Monday}
		}
		return weeklyRule{days: days}
	case Monthly:
		return monthlyRule{day: s.DayOfMonth}
	default:
		return dailyRule{}
	}
}

// Validate reports the first problem with the spec, or nil.
func (s Spec) Validate() error {
	switch s.Frequency {
	case Daily, Weekly, Monthly:
	default:
		return fmt.Errorf("unknown frequency %q", s.Frequency)
	}
	if s.Frequency != Weekly && len(s.DaysOfWeek) > 0 {
		return fmt.Errorf("days_of_week only applies to weekly schedules")
	}
	if s.Frequency != Monthly && s.DayOfMonth != 0 {
		return fmt.Errorf("day_of_month only applies to monthly schedules")
	}
	for _, d := range s.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("day of week %d out of range 0..6", d)
		}
	}
	if s.Frequency == Monthly && (s.DayOfMonth < 1 || s.DayOfMonth > 31) {
		return fmt.Errorf("day of month %d out of range 1..31", s.DayOfMonth)
	}
	if _, _, err := ParseTimeOfDay(s.TimeOfDay); err != nil {
		return err
	}
	if s.Location == nil {
		return fmt.Errorf("missing timezone location")
	}
	if s.StartsAt != nil && s.EndsAt != nil && !s.EndsAt.After(*s.StartsAt) {
		return fmt.Errorf("ends_at must be after starts_at")
	}
	return nil
}

// Next returns the earliest instant strictly after ref at which the spec's
// wall-clock condition holds, floored to StartsAt. When the result would land
// past EndsAt it returns (EndsAt, false): there are no further occurrences and
// the caller must disable the schedule, never run at the returned instant.
func Next(s Spec, ref time.Time) (time.Time, bool, error) {
	hh, mm, err := ParseTimeOfDay(s.TimeOfDay)
	if err != nil {
		return time.Time{}, false, err
	}
	if s.Location == nil {
		return time.Time{}, false, fmt.Errorf("missing timezone location")
	}

	r := s.rule()
	cand := r.next(ref, hh, mm, s.Location)
	if s.StartsAt != nil && cand.Before(*s.StartsAt) {
		// First occurrence must be on/after StartsAt; the -1s reference keeps
		// an occurrence landing exactly at StartsAt eligible.
		cand = r.next(s.StartsAt.Add(-time.Second), hh, mm, s.Location)
	}
	if s.EndsAt != nil && cand.After(*s.EndsAt) {
		return *s.EndsAt, false, nil
	}
	return cand, true, nil
}

func (dailyRule) next(ref time.Time, hh, mm int, loc *time.Location) time.Time {
	l := ref.In(loc)
	cand := time.Date(l.Year(), l.Month(), l.Day(), hh, mm, 0, 0, loc)
	if !cand.After(ref) {
		cand = time.Date(l.Year(), l.Month(), l.Day()+1, hh, mm, 0, 0, loc)
	}
	return cand
}

func (r weeklyRule) next(ref time.Time, hh, mm int, loc *time.Location) time.Time {
	l := ref.In(loc)
	var best time.Time
	for _, wd := range r.days {
		offset := (int(wd) - int(l.Weekday()) + 7) % 7
		cand := time.Date(l.Year(), l.Month(), l.Day()+offset, hh, mm, 0, 0, loc)
		if !cand.After(ref) {
			// Today's slot has already passed; same weekday next week.
			cand = time.Date(l.Year(), l.Month(), l.Day()+offset+7, hh, mm, 0, 0, loc)
		}
		if best.IsZero() || cand.Before(best) {
			best = cand
		}
	}
	return best
}

func (r monthlyRule) next(ref time.Time, hh, mm int, loc *time.Location) time.Time {
	l := ref.In(loc)
	year, month := l.Year(), l.Month()
	cand := time.Date(year, month, clampDay(r.day, year, month), hh, mm, 0, 0, loc)
	if !cand.After(ref) {
		year, month = nextMonth(year, month)
		cand = time.Date(year, month, clampDay(r.day, year, month), hh, mm, 0, 0, loc)
	}
	return cand
}

// clampDay pins day into [1, length of month]. Day 31 in February becomes the
// 28th or 29th depending on leap year.
func clampDay(day, year int, month time.Month) int {
	if day < 1 {
		day = 1
	}
	if last := daysIn(year, month); day > last {
		return last
	}
	return day
}

// daysIn returns the number of days in the given month. Day 0 of the next
// month normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

// ParseTimeOfDay parses strict 24-hour "HH:MM" (00:00..23:59). No seconds.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("time of day %q must be HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, fmt.Errorf("time of day %q must be HH:MM", s)
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 {
		return 0, 0, fmt.Errorf("time of day %q: hour out of range", s)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q: minute out of range", s)
	}
	return hour, minute, nil
}

// WindowKey names one occurrence: the wall-clock representation of runAt in
// the schedule's timezone, truncated to the minute. Two instants in the same
// local minute are the same occurrence, which is exactly the granularity the
// due-check operates at.
func WindowKey(runAt time.Time, loc *time.Location) string {
	return runAt.In(loc).Format("2006-01-02T15:04")
}
