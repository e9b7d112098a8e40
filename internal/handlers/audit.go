package handlers

import (
	"net/http"

	"github.com/crucial707/a11y-monitor/internal/models"
	"github.com/crucial707/a11y-monitor/internal/repo"
)

// AuditHandler serves the audit log. Admin only (enforced by the router).
type AuditHandler struct {
	Repo *repo.AuditRepo
}

// ListAudit returns recent audit entries, newest first (query: limit, offset).
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entries, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": entries})
}
