package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestScanClient_Scan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/scans" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["target_url"] != "https://example.com" {
			t.Errorf("unexpected target: %q", body["target_url"])
		}
		json.NewEncoder(w).Encode(ScanResult{
			Score:      87.5,
			IssueCount: 12,
			ScannedAt:  time.Date(2024, 6, 12, 9, 0, 30, 0, time.UTC),
		})
	}))
	defer srv.Close()

	c := NewScanClient(srv.URL, 5*time.Second)
	res, err := c.Scan(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Score != 87.5 || res.IssueCount != 12 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.TargetURL != "https://example.com" {
		t.Errorf("target not echoed onto result: %q", res.TargetURL)
	}
}

func TestScanClient_ErrorIncludesBodySnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "renderer crashed", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewScanClient(srv.URL, 5*time.Second)
	_, err := c.Scan(context.Background(), "https://example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "renderer crashed") {
		t.Errorf("error should carry status and snippet, got %v", err)
	}
}

func TestDeliveryClient_Deliver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/reports" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			TargetURL  string   `json:"target_url"`
			Score      float64  `json:"score"`
			Recipients []string `json:"recipients"`
			Format     string   `json:"format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.TargetURL != "https://example.com" || body.Format != "pdf" || len(body.Recipients) != 1 {
			t.Errorf("unexpected payload: %+v", body)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewDeliveryClient(srv.URL, 5*time.Second)
	err := c.Deliver(context.Background(), &ScanResult{TargetURL: "https://example.com", Score: 90},
		DeliveryConfig{Recipients: []string{"owner@example.com"}, Format: "pdf"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestDeliveryClient_ContextCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewDeliveryClient(srv.URL, 5*time.Second)
	err := c.Deliver(ctx, &ScanResult{TargetURL: "https://example.com"}, DeliveryConfig{Format: "html"})
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}
