package models

import "time"

// AuditEntry represents one audit log row. UserID 0 means the scheduler
// itself acted (auto-disable).
type AuditEntry struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	Action       string    `json:"action"`        // create, update, delete, reset, auto_disable
	ResourceType string    `json:"resource_type"` // schedule, user
	ResourceID   int       `json:"resource_id"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
