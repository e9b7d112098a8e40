package recurrence

import (
	"testing"
	"time"
)

func loc(t *testing.T, name string) *time.Location {
	t.Helper()
	l, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%s): %v", name, err)
	}
	return l
}

func mustNext(t *testing.T, s Spec, ref time.Time) (time.Time, bool) {
	t.Helper()
	got, ok, err := Next(s, ref)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return got, ok
}

func TestNext_DailyBeforeTimeOfDay(t *testing.T) {
	ny := loc(t, "America/New_York")
	s := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: ny}
	ref := time.Date(2024, 6, 12, 8, 0, 0, 0, ny)

	got, ok := mustNext(t, s, ref)
	want := time.Date(2024, 6, 12, 9, 0, 0, 0, ny)
	if !ok || !got.Equal(want) {
		t.Errorf("got %v ok=%v, want %v", got, ok, want)
	}
}

func TestNext_DailyAfterTimeOfDay(t *testing.T) {
	ny := loc(t, "America/New_York")
	s := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: ny}
	ref := time.Date(2024, 6, 12, 10, 0, 0, 0, ny)

	got, ok := mustNext(t, s, ref)
	want := time.Date(2024, 6, 13, 9, 0, 0, 0, ny)
	if !ok || !got.Equal(want) {
		t.Errorf("got %v ok=%v, want %v", got, ok, want)
	}
}

func TestNext_DailyExactlyAtTimeOfDayRollsForward(t *testing.T) {
	// Strictly-after tie break: a reference exactly on the slot yields tomorrow.
	ny := loc(t, "America/New_York")
	s := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: ny}
	ref := time.Date(2024, 6, 12, 9, 0, 0, 0, ny)

	got, _ := mustNext(t, s, ref)
	want := time.Date(2024, 6, 13, 9, 0, 0, 0, ny)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNext_DailyAcrossSpringForward(t *testing.T) {
	// 2024-03-10: America/New_York jumps 02:00 EST -> 03:00 EDT. The target
	// instant must use the offset of the target date (EDT), not the reference
	// date (EST).
	ny := loc(t, "America/New_York")
	s := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: ny}
	ref := time.Date(2024, 3, 9, 10, 0, 0, 0, ny) // EST, UTC-5

	got, _ := mustNext(t, s, ref)
	wantUTC := time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC) // 09:00 EDT
	if !got.Equal(wantUTC) {
		t.Errorf("got %v (= %v UTC), want %v", got, got.UTC(), wantUTC)
	}
	// 23h of wall clock minus the skipped hour.
	if got.Sub(ref) != 22*time.Hour {
		t.Errorf("expected a 22h gap across spring forward, got %v", got.Sub(ref))
	}
}

func TestNext_DailyAcrossFallBack(t *testing.T) {
	// 2024-11-03: clocks fall back 02:00 EDT -> 01:00 EST.
	ny := loc(t, "America/New_York")
	s := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: ny}
	ref := time.Date(2024, 11, 2, 10, 0, 0, 0, ny) // EDT, UTC-4

	got, _ := mustNext(t, s, ref)
	wantUTC := time.Date(2024, 11, 3, 14, 0, 0, 0, time.UTC) // 09:00 EST
	if !got.Equal(wantUTC) {
		t.Errorf("got %v UTC, want %v", got.UTC(), wantUTC)
	}
	// 23h of wall clock plus the repeated hour.
	if got.Sub(ref) != 24*time.Hour {
		t.Errorf("expected a 24h gap across fall back, got %v", got.Sub(ref))
	}
}

func TestNext_WeeklyPicksEarliestCandidate(t *testing.T) {
	berlin := loc(t, "Europe/Berlin")
	s := Spec{
		Frequency:  Weekly,
		DaysOfWeek: []time.Weekday{time.Monday, time.Friday},
		TimeOfDay:  "08:30",
		Location:   berlin,
	}
	// Wednesday 2024-06-12.
	ref := time.Date(2024, 6, 12, 12, 0, 0, 0, berlin)

	got, _ := mustNext(t, s, ref)
	want := time.Date(2024, 6, 14, 8, 30, 0, 0, berlin) // Friday
	if !got.Equal(want) {
		t.Errorf("got %v (%v), want %v", got, got.Weekday(), want)
	}
}

func TestNext_WeeklyEmptyDaysDefaultsToMonday(t *testing.T) {
	berlin := loc(t, "Europe/Berlin")
	s := Spec{Frequency: Weekly, TimeOfDay: "08:30", Location: berlin}
	ref := time.Date(2024, 6, 12, 12, 0, 0, 0, berlin) // Wednesday

	got, _ := mustNext(t, s, ref)
	if got.Weekday() != time.Monday {
		t.Errorf("got weekday %v, want Monday", got.Weekday())
	}
	want := time.Date(2024, 6, 17, 8, 30, 0, 0, berlin)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNext_WeeklySameDayAfterSlotGoesToNextWeek(t *testing.T) {
	berlin := loc(t, "Europe/Berlin")
	s := Spec{
		Frequency:  Weekly,
		DaysOfWeek: []time.Weekday{time.Wednesday},
		TimeOfDay:  "08:30",
		Location:   berlin,
	}
	ref := time.Date(2024, 6, 12, 12, 0, 0, 0, berlin) // Wednesday, past 08:30

	got, _ := mustNext(t, s, ref)
	want := time.Date(2024, 6, 19, 8, 30, 0, 0, berlin)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNext_MonthlyClampsFebruary(t *testing.T) {
	tokyo := loc(t, "Asia/Tokyo")
	s := Spec{Frequency: Monthly, DayOfMonth: 31, TimeOfDay: "07:00", Location: tokyo}

	// Non-leap year: Feb has 28 days.
	ref := time.Date(2023, 2, 1, 0, 0, 0, 0, tokyo)
	got, _ := mustNext(t, s, ref)
	want := time.Date(2023, 2, 28, 7, 0, 0, 0, tokyo)
	if !got.Equal(want) {
		t.Errorf("2023: got %v, want %v", got, want)
	}

	// Leap year: Feb has 29 days.
	ref = time.Date(2024, 2, 1, 0, 0, 0, 0, tokyo)
	got, _ = mustNext(t, s, ref)
	want = time.Date(2024, 2, 29, 7, 0, 0, 0, tokyo)
	if !got.Equal(want) {
		t.Errorf("2024: got %v, want %v", got, want)
	}
}

func TestNext_MonthlyRollsOverYear(t *testing.T) {
	tokyo := loc(t, "Asia/Tokyo")
	s := Spec{Frequency: Monthly, DayOfMonth: 5, TimeOfDay: "07:00", Location: tokyo}
	ref := time.Date(2024, 12, 20, 0, 0, 0, 0, tokyo)

	got, _ := mustNext(t, s, ref)
	want := time.Date(2025, 1, 5, 7, 0, 0, 0, tokyo)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNext_MonthlyReclampsAfterAdvance(t *testing.T) {
	// Past Jan 31: the February candidate must clamp to Feb's length, not keep 31.
	utc := time.UTC
	s := Spec{Frequency: Monthly, DayOfMonth: 31, TimeOfDay: "12:00", Location: utc}
	ref := time.Date(2023, 1, 31, 13, 0, 0, 0, utc)

	got, _ := mustNext(t, s, ref)
	want := time.Date(2023, 2, 28, 12, 0, 0, 0, utc)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNext_StartsAtFloor(t *testing.T) {
	utc := time.UTC
	starts := time.Date(2024, 7, 1, 0, 0, 0, 0, utc)
	s := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: utc, StartsAt: &starts}
	ref := time.Date(2024, 6, 1, 8, 0, 0, 0, utc)

	got, ok := mustNext(t, s, ref)
	want := time.Date(2024, 7, 1, 9, 0, 0, 0, utc)
	if !ok || !got.Equal(want) {
		t.Errorf("got %v ok=%v, want %v", got, ok, want)
	}
	if got.Before(starts) {
		t.Errorf("next run %v precedes starts_at %v", got, starts)
	}
}

func TestNext_StartsAtExactOccurrenceEligible(t *testing.T) {
	utc := time.UTC
	starts := time.Date(2024, 7, 1, 9, 0, 0, 0, utc)
	s := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: utc, StartsAt: &starts}
	ref := time.Date(2024, 6, 1, 8, 0, 0, 0, utc)

	got, _ := mustNext(t, s, ref)
	if !got.Equal(starts) {
		t.Errorf("got %v, want occurrence exactly at starts_at %v", got, starts)
	}
}

func TestNext_EndsAtSentinel(t *testing.T) {
	utc := time.UTC
	ends := time.Date(2024, 6, 12, 12, 0, 0, 0, utc)
	s := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: utc, EndsAt: &ends}
	ref := time.Date(2024, 6, 12, 10, 0, 0, 0, utc) // next natural slot is tomorrow, past ends

	got, ok := mustNext(t, s, ref)
	if ok {
		t.Fatalf("expected closed window, got ok=true at %v", got)
	}
	if !got.Equal(ends) {
		t.Errorf("sentinel should be ends_at %v, got %v", ends, got)
	}
}

func TestNext_IsPure(t *testing.T) {
	ny := loc(t, "America/New_York")
	s := Spec{Frequency: Weekly, DaysOfWeek: []time.Weekday{time.Tuesday}, TimeOfDay: "23:15", Location: ny}
	ref := time.Date(2024, 6, 12, 10, 0, 0, 0, ny)

	a, aok := mustNext(t, s, ref)
	b, bok := mustNext(t, s, ref)
	if !a.Equal(b) || aok != bok {
		t.Errorf("Next is not pure: %v/%v vs %v/%v", a, aok, b, bok)
	}
	if !a.After(ref) {
		t.Errorf("next run %v is not strictly after ref %v", a, ref)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"00:00", 0, 0, false},
		{"09:05", 9, 5, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"9:00", 0, 0, true},
		{"09:00:00", 0, 0, true},
		{"ab:cd", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, c := range cases {
		h, m, err := ParseTimeOfDay(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", c.in, err)
			continue
		}
		if h != c.h || m != c.m {
			t.Errorf("ParseTimeOfDay(%q) = %d:%d, want %d:%d", c.in, h, m, c.h, c.m)
		}
	}
}

func TestWindowKey_SameLocalMinute(t *testing.T) {
	ny := loc(t, "America/New_York")
	a := time.Date(2024, 6, 12, 13, 0, 2, 0, time.UTC)
	b := time.Date(2024, 6, 12, 13, 0, 58, 0, time.UTC)

	if WindowKey(a, ny) != WindowKey(b, ny) {
		t.Errorf("instants in the same local minute must share a key: %q vs %q",
			WindowKey(a, ny), WindowKey(b, ny))
	}
	c := time.Date(2024, 6, 12, 13, 1, 0, 0, time.UTC)
	if WindowKey(a, ny) == WindowKey(c, ny) {
		t.Errorf("instants in different minutes must differ: %q", WindowKey(c, ny))
	}
}

func TestWindowKey_IsLocalWallClock(t *testing.T) {
	ny := loc(t, "America/New_York")
	at := time.Date(2024, 6, 12, 13, 0, 0, 0, time.UTC) // 09:00 EDT
	if got, want := WindowKey(at, ny), "2024-06-12T09:00"; got != want {
		t.Errorf("WindowKey = %q, want %q", got, want)
	}
}

func TestSpecValidate(t *testing.T) {
	utc := time.UTC
	ok := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: utc}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid spec rejected: %v", err)
	}

	bad := []Spec{
		{Frequency: "hourly", TimeOfDay: "09:00", Location: utc},
		{Frequency: Daily, TimeOfDay: "9am", Location: utc},
		{Frequency: Daily, TimeOfDay: "09:00"},
		{Frequency: Daily, DaysOfWeek: []time.Weekday{time.Monday}, TimeOfDay: "09:00", Location: utc},
		{Frequency: Weekly, DayOfMonth: 3, TimeOfDay: "09:00", Location: utc},
		{Frequency: Weekly, DaysOfWeek: []time.Weekday{8}, TimeOfDay: "09:00", Location: utc},
		{Frequency: Monthly, DayOfMonth: 0, TimeOfDay: "09:00", Location: utc},
		{Frequency: Monthly, DayOfMonth: 32, TimeOfDay: "09:00", Location: utc},
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, s)
		}
	}

	starts := time.Date(2024, 7, 1, 0, 0, 0, 0, utc)
	ends := starts.Add(-time.Hour)
	inverted := Spec{Frequency: Daily, TimeOfDay: "09:00", Location: utc, StartsAt: &starts, EndsAt: &ends}
	if err := inverted.Validate(); err == nil {
		t.Error("expected error for ends_at before starts_at")
	}
}
