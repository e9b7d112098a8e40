package middleware

import (
	"net/http"
	"time"

	"github.com/crucial707/a11y-monitor/internal/metrics"
)

// Prometheus times every request and feeds the labelled HTTP series. Mount
// after Recoverer so a recovered panic still lands as a 500 sample. Scrapes of
// /metrics itself are not recorded.
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/metrics" {
			return
		}
		metrics.RecordRequest(r.Method, r.URL.Path, rec.status, time.Since(start).Seconds())
	})
}
