package schedules

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/crucial707/a11y-monitor/internal/models"
)

// captureOutput helps capture stdout during command execution.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String()
}

// withAPI points the CLI at srv and plants a token in a throwaway home dir.
func withAPI(t *testing.T, srv *httptest.Server) {
	t.Helper()
	t.Setenv("A11Y_MONITOR_API_URL", srv.URL)
	t.Setenv("HOME", t.TempDir())
	if err := os.WriteFile(os.Getenv("HOME")+"/.a11y_token", []byte("test-token"), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}
}

func TestListSchedules_TableOutput(t *testing.T) {
	next := time.Date(2024, 6, 13, 9, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/schedules" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("missing bearer token, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []models.Schedule{
				{ID: 1, TargetURL: "https://example.com", Frequency: "daily", TimeOfDay: "09:00",
					Timezone: "UTC", Enabled: true, NextRunAt: next},
				{ID: 2, TargetURL: "https://example.org", Frequency: "weekly", TimeOfDay: "08:30",
					Timezone: "Europe/Berlin", Enabled: false, NextRunAt: next},
			},
			"total": 2,
		})
	}))
	defer srv.Close()
	withAPI(t, srv)

	cmd := listSchedulesCmd()
	out := captureOutput(t, func() {
		if err := cmd.RunE(cmd, nil); err != nil {
			t.Errorf("list: %v", err)
		}
	})

	if !strings.Contains(out, "https://example.com") || !strings.Contains(out, "https://example.org") {
		t.Fatalf("expected both targets in output, got: %s", out)
	}
	if !strings.Contains(out, "Europe/Berlin") {
		t.Fatalf("expected timezone column, got: %s", out)
	}
}

func TestListSchedules_JSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []models.Schedule{{ID: 1, TargetURL: "https://example.com"}},
			"total": 1,
		})
	}))
	defer srv.Close()
	withAPI(t, srv)

	cmd := listSchedulesCmd()
	_ = cmd.Flags().Set("json", "true")

	out := captureOutput(t, func() {
		if err := cmd.RunE(cmd, nil); err != nil {
			t.Errorf("list: %v", err)
		}
	})

	if !strings.Contains(out, `"target_url": "https://example.com"`) {
		t.Fatalf("expected JSON output, got: %s", out)
	}
}

func TestCreateSchedule_SendsPayload(t *testing.T) {
	next := time.Date(2024, 6, 13, 9, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/schedules" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["target_url"] != "https://example.com" || body["frequency"] != "weekly" {
			t.Fatalf("unexpected payload: %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Schedule{ID: 9, NextRunAt: next})
	}))
	defer srv.Close()
	withAPI(t, srv)

	cmd := createScheduleCmd()
	_ = cmd.Flags().Set("url", "https://example.com")
	_ = cmd.Flags().Set("frequency", "WEEKLY")
	_ = cmd.Flags().Set("days", "1,5")

	out := captureOutput(t, func() {
		if err := cmd.RunE(cmd, nil); err != nil {
			t.Errorf("create: %v", err)
		}
	})

	if !strings.Contains(out, "Schedule 9 created") {
		t.Fatalf("expected creation message, got: %s", out)
	}
}

func TestAction_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"validity window has ended"}`, http.StatusConflict)
	}))
	defer srv.Close()
	withAPI(t, srv)

	cmd := actionCmd("enable", "Re-enable a schedule")
	err := cmd.RunE(cmd, []string{"3"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "validity window has ended") {
		t.Fatalf("error should carry status and body, got: %v", err)
	}
}

func TestNotLoggedIn(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cmd := listSchedulesCmd()
	err := cmd.RunE(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("expected login hint, got: %v", err)
	}
}
