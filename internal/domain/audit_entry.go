package domain

import "time"

// AuditAction identifies what an automated or administrative action did.
type AuditAction string

const (
	AuditActionResponseBreach   AuditAction = "SLA_RESPONSE_BREACH"
	AuditActionResolutionBreach AuditAction = "SLA_RESOLUTION_BREACH"
	AuditActionAutoClosed       AuditAction = "ISSUE_AUTO_CLOSED"
	AuditActionIssueDeleted     AuditAction = "ISSUE_DELETED"
)

// AuditEntry is an append-only record of automated actions taken by the
// sweeps and of administrative deletions. UserID is nil for system actions.
type AuditEntry struct {
	ID         string
	CampusID   string
	UserID     *string
	Action     AuditAction
	EntityType string
	EntityID   string
	Changes    map[string]any
	CreatedAt  time.Time
}
