package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crucial707/a11y-monitor/internal/middleware"
	"github.com/crucial707/a11y-monitor/internal/models"
	"github.com/crucial707/a11y-monitor/internal/recurrence"
	"github.com/crucial707/a11y-monitor/internal/repo"
	"github.com/go-chi/chi/v5"
)

// ScheduleHandler handles schedule CRUD and lifecycle actions. It is the
// owner-facing surface that computes next_run_at before a schedule ever
// becomes visible to the control loop.
type ScheduleHandler struct {
	Schedules *repo.ScheduleRepo
	Runs      *repo.RunRepo
	Audit     *repo.AuditRepo
}

type scheduleInput struct {
	TargetURL    string     `json:"target_url"`
	Timezone     string     `json:"timezone"`
	Frequency    string     `json:"frequency"`
	DaysOfWeek   []int      `json:"days_of_week"`
	DayOfMonth   int        `json:"day_of_month"`
	TimeOfDay    string     `json:"time_of_day"`
	StartsAt     *time.Time `json:"starts_at"`
	EndsAt       *time.Time `json:"ends_at"`
	Recipients   []string   `json:"recipients"`
	ReportFormat string     `json:"report_format"`
	Enabled      *bool      `json:"enabled"`
}

var reportFormats = map[string]bool{"html": true, "pdf": true}

// validate checks the input and returns field-level errors plus the parsed
// recurrence spec when the recurrence fields are sound.
func (in *scheduleInput) validate() (recurrence.Spec, map[string]string) {
	fields := make(map[string]string)

	if in.TargetURL == "" {
		fields["target_url"] = "required"
	} else if u, err := url.Parse(in.TargetURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fields["target_url"] = "must be an absolute http(s) URL"
	}

	if in.ReportFormat == "" {
		in.ReportFormat = "html"
	}
	if !reportFormats[in.ReportFormat] {
		fields["report_format"] = "must be html or pdf"
	}
	for _, rcpt := range in.Recipients {
		if !strings.Contains(rcpt, "@") {
			fields["recipients"] = "invalid email address: " + rcpt
			break
		}
	}

	var loc *time.Location
	if in.Timezone == "" {
		fields["timezone"] = "required"
	} else if l, err := time.LoadLocation(in.Timezone); err != nil {
		fields["timezone"] = "unknown IANA timezone"
	} else {
		loc = l
	}

	in.Frequency = strings.ToLower(in.Frequency)
	days := make([]time.Weekday, 0, len(in.DaysOfWeek))
	for _, d := range in.DaysOfWeek {
		days = append(days, time.Weekday(d))
	}
	spec := recurrence.Spec{
		Frequency:  recurrence.Frequency(in.Frequency),
		DaysOfWeek: days,
		DayOfMonth: in.DayOfMonth,
		TimeOfDay:  in.TimeOfDay,
		Location:   loc,
		StartsAt:   in.StartsAt,
		EndsAt:     in.EndsAt,
	}
	if loc != nil {
		if err := spec.Validate(); err != nil {
			fields["recurrence"] = err.Error()
		}
	}
	return spec, fields
}

func currentUser(r *http.Request) (id int, role string) {
	if v, ok := r.Context().Value(middleware.UserIDKey).(int); ok {
		id = v
	}
	if v, ok := r.Context().Value(middleware.RoleKey).(string); ok {
		role = v
	}
	return id, role
}

// canAccess reports whether the requester owns the schedule or is an admin.
func canAccess(r *http.Request, s *models.Schedule) bool {
	uid, role := currentUser(r)
	return s.OwnerID == uid || role == models.RoleAdmin
}

func scheduleID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil
}

func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 50, 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// CreateSchedule creates a schedule with its initial next_run_at computed
// from now, so it is immediately eligible for the control loop.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var input scheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	spec, fields := input.validate()
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	next, active, err := recurrence.Next(spec, time.Now())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if !active {
		JSONValidationError(w, "validation failed",
			map[string]string{"ends_at": "window yields no future occurrences"}, http.StatusBadRequest)
		return
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}
	ownerID, _ := currentUser(r)
	s := &models.Schedule{
		OwnerID:      ownerID,
		TargetURL:    input.TargetURL,
		Timezone:     input.Timezone,
		Frequency:    input.Frequency,
		DaysOfWeek:   input.DaysOfWeek,
		DayOfMonth:   input.DayOfMonth,
		TimeOfDay:    input.TimeOfDay,
		StartsAt:     input.StartsAt,
		EndsAt:       input.EndsAt,
		Enabled:      enabled,
		NextRunAt:    next,
		Recipients:   input.Recipients,
		ReportFormat: input.ReportFormat,
	}
	if err := h.Schedules.Create(r.Context(), s); err != nil {
		slog.Error("create schedule", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	h.auditLog(r, "create", s.ID, s.TargetURL)

	writeJSON(w, http.StatusCreated, s)
}

// ListSchedules returns the requester's schedules (query: limit, offset).
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	ownerID, _ := currentUser(r)

	list, err := h.Schedules.ListByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	total, err := h.Schedules.CountByOwner(r.Context(), ownerID)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.Schedule{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": list, "total": total})
}

// GetSchedule returns one schedule by id.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(r)
	if !ok {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}
	s, err := h.Schedules.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return
	}
	if !canAccess(r, s) {
		JSONError(w, "forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSchedule replaces the owner-editable fields. Any recurrence edit
// recomputes next_run_at from now before the row is visible to the loop again.
func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(r)
	if !ok {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}
	s, err := h.Schedules.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return
	}
	if !canAccess(r, s) {
		JSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	var input scheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	spec, fields := input.validate()
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}
	next, active, err := recurrence.Next(spec, time.Now())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if !active {
		JSONValidationError(w, "validation failed",
			map[string]string{"ends_at": "window yields no future occurrences"}, http.StatusBadRequest)
		return
	}

	s.TargetURL = input.TargetURL
	s.Timezone = input.Timezone
	s.Frequency = input.Frequency
	s.DaysOfWeek = input.DaysOfWeek
	s.DayOfMonth = input.DayOfMonth
	s.TimeOfDay = input.TimeOfDay
	s.StartsAt = input.StartsAt
	s.EndsAt = input.EndsAt
	s.Recipients = input.Recipients
	s.ReportFormat = input.ReportFormat
	if input.Enabled != nil {
		s.Enabled = *input.Enabled
	}
	s.NextRunAt = next

	if err := h.Schedules.Update(r.Context(), s); err != nil {
		slog.Error("update schedule", "schedule_id", id, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	h.auditLog(r, "update", id, s.TargetURL)

	fresh, _ := h.Schedules.GetByID(r.Context(), id)
	writeJSON(w, http.StatusOK, fresh)
}

// DeleteSchedule deletes a schedule.
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(r)
	if !ok {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}
	s, err := h.Schedules.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return
	}
	if !canAccess(r, s) {
		JSONError(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := h.Schedules.Delete(r.Context(), id); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	h.auditLog(r, "delete", id, s.TargetURL)
	w.WriteHeader(http.StatusNoContent)
}

// EnableSchedule re-enables a schedule and restarts its clock from now.
func (h *ScheduleHandler) EnableSchedule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableSchedule pauses a schedule without touching its recurrence fields.
func (h *ScheduleHandler) DisableSchedule(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *ScheduleHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, ok := scheduleID(r)
	if !ok {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}
	s, err := h.Schedules.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return
	}
	if !canAccess(r, s) {
		JSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	var next time.Time
	if enabled {
		spec, err := s.RecurrenceSpec()
		if err != nil {
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
			return
		}
		n, active, err := recurrence.Next(spec, time.Now())
		if err != nil {
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
			return
		}
		if !active {
			JSONError(w, "validity window has ended", http.StatusConflict)
			return
		}
		next = n
	}
	if err := h.Schedules.SetEnabled(r.Context(), id, enabled, next); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	action := "disable"
	if enabled {
		action = "enable"
	}
	h.auditLog(r, action, id, s.TargetURL)

	fresh, _ := h.Schedules.GetByID(r.Context(), id)
	writeJSON(w, http.StatusOK, fresh)
}

// ResetSchedule is the operator action: clear the failure counter, re-enable,
// and recompute next_run_at from now. Admin only (enforced by the router).
func (h *ScheduleHandler) ResetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(r)
	if !ok {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}
	s, err := h.Schedules.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return
	}
	spec, err := s.RecurrenceSpec()
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	next, active, err := recurrence.Next(spec, time.Now())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if !active {
		JSONError(w, "validity window has ended", http.StatusConflict)
		return
	}
	if err := h.Schedules.Reset(r.Context(), id, next); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	h.auditLog(r, "reset", id, s.TargetURL)

	fresh, _ := h.Schedules.GetByID(r.Context(), id)
	writeJSON(w, http.StatusOK, fresh)
}

// ListRuns returns a schedule's run history, newest first.
func (h *ScheduleHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(r)
	if !ok {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return
	}
	s, err := h.Schedules.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if s == nil {
		JSONError(w, "schedule not found", http.StatusNotFound)
		return
	}
	if !canAccess(r, s) {
		JSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	limit, offset := pagination(r)
	runs, err := h.Runs.ListBySchedule(r.Context(), id, limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	total, err := h.Runs.CountBySchedule(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.ReportRun{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": runs, "total": total})
}

func (h *ScheduleHandler) auditLog(r *http.Request, action string, scheduleID int, details string) {
	if h.Audit == nil {
		return
	}
	uid, _ := currentUser(r)
	if err := h.Audit.Log(r.Context(), uid, action, "schedule", scheduleID, details); err != nil {
		slog.Error("audit log", "action", action, "schedule_id", scheduleID, "error", err)
	}
}
