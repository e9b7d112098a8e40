// Package pipeline defines the narrow contracts for the external scan engine
// and the report rendering/delivery service, plus HTTP clients for both. The
// scheduler core only sees these interfaces.
package pipeline

import (
	"context"
	"time"
)

// ScanResult is the scan engine's outcome for one target page.
type ScanResult struct {
	TargetURL  string    `json:"target_url"`
	Score      float64   `json:"score"`
	IssueCount int       `json:"issue_count"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// DeliveryConfig is the schedule's delivery configuration, opaque to the
// scheduling core and passed through to the delivery service.
type DeliveryConfig struct {
	Recipients []string `json:"recipients"`
	Format     string   `json:"format"`
}

// Scanner runs one accessibility scan against a target page.
type Scanner interface {
	Scan(ctx context.Context, targetURL string) (*ScanResult, error)
}

// Deliverer renders and transmits the report for a completed scan.
type Deliverer interface {
	Deliver(ctx context.Context, result *ScanResult, cfg DeliveryConfig) error
}
