package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Ticker runs one control loop pass.
type Ticker interface {
	Tick(ctx context.Context) error
}

// TickHandler exposes the trigger contract over HTTP so an external process
// scheduler can drive the control loop. Overlapping or retried calls are safe;
// the run table's uniqueness constraint deduplicates occurrences.
type TickHandler struct {
	Runner Ticker
}

// Tick runs one tick synchronously and reports when it finished. Admin only
// (enforced by the router).
func (h *TickHandler) Tick(w http.ResponseWriter, r *http.Request) {
	if err := h.Runner.Tick(r.Context()); err != nil {
		slog.Error("tick endpoint", "error", err)
		JSONError(w, "tick aborted: store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"ticked_at": time.Now().UTC().Format(time.RFC3339),
	})
}
