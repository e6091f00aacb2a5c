package models

import "time"

// AuditEvent is one client-reported event as stored in audit_events.
type AuditEvent struct {
	UserID     string
	DeviceID   string
	Kind       string
	Subject    string
	Message    string
	Severity   string
	OccurredAt time.Time
	ReceivedAt time.Time
}
