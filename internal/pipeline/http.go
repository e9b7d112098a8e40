package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds one pipeline HTTP call when the caller does not
// configure its own client.
const DefaultTimeout = 120 * time.Second

// ScanClient talks to the external accessibility scan engine.
type ScanClient struct {
	BaseURL string
	Client  *http.Client
}

// NewScanClient returns a ScanClient with a bounded default HTTP client.
func NewScanClient(baseURL string, timeout time.Duration) *ScanClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ScanClient{BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

// Scan posts the target to the scan engine and decodes the result.
func (c *ScanClient) Scan(ctx context.Context, targetURL string) (*ScanResult, error) {
	payload, err := json.Marshal(map[string]string{"target_url": targetURL})
	if err != nil {
		return nil, err
	}
	var result ScanResult
	if err := c.postJSON(ctx, "/v1/scans", payload, &result); err != nil {
		return nil, fmt.Errorf("scan engine: %w", err)
	}
	if result.ScannedAt.IsZero() {
		result.ScannedAt = time.Now()
	}
	result.TargetURL = targetURL
	return &result, nil
}

func (c *ScanClient) postJSON(ctx context.Context, path string, payload []byte, out any) error {
	return postJSON(ctx, c.Client, c.BaseURL+path, payload, out)
}

// DeliveryClient talks to the external report rendering/delivery service.
type DeliveryClient struct {
	BaseURL string
	Client  *http.Client
}

// NewDeliveryClient returns a DeliveryClient with a bounded default HTTP client.
func NewDeliveryClient(baseURL string, timeout time.Duration) *DeliveryClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DeliveryClient{BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

// Deliver posts the scan result plus delivery configuration to the report service.
func (c *DeliveryClient) Deliver(ctx context.Context, result *ScanResult, cfg DeliveryConfig) error {
	payload, err := json.Marshal(struct {
		*ScanResult
		DeliveryConfig
	}{result, cfg})
	if err != nil {
		return err
	}
	if err := postJSON(ctx, c.Client, c.BaseURL+"/v1/reports", payload, nil); err != nil {
		return fmt.Errorf("report service: %w", err)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Keep a short body snippet for the run record's error field.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
