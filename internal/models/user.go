package models

// RoleAdmin may trigger ticks, reset schedules, and read the audit log.
const RoleAdmin = "admin"

// RoleViewer owns and manages only their own schedules.
const RoleViewer = "viewer"

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}
