package models

import "time"

// AuditEntry records one login or logout attempt. Append-only; UserID is nil
// when the supplied email matched no account.
type AuditEntry struct {
	ID        string
	UserID    *string
	Email     string
	Success   bool
	IPAddress string
	CreatedAt time.Time
}
