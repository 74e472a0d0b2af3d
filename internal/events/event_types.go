package events

import (
	"time"

	"github.com/spec-kit/facilities-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated       EventType = "issue_created"
	EventIssueAssigned      EventType = "issue_assigned"
	EventIssueStatusChanged EventType = "issue_status_changed"
	EventSLABreachDetected  EventType = "sla_breach_detected"
	EventIssueAutoClosed    EventType = "issue_auto_closed"
)

// Actor encapsulates actor metadata for an event. UserID is nil for actions
// taken by the sweeps.
type Actor struct {
	UserID *string `json:"user_id,omitempty"`
	System bool    `json:"system,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	CampusID  string      `json:"campus_id"`
	IssueID   string      `json:"issue_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	IssueNumber int64                `json:"issue_number"`
	CategoryID  string               `json:"category_id"`
	Priority    domain.IssuePriority `json:"priority"`
	Title       string               `json:"title"`
}

// IssueAssignedPayload payload.
type IssueAssignedPayload struct {
	AssignedTo string  `json:"assigned_to"`
	AssignedBy string  `json:"assigned_by"`
	Note       *string `json:"note,omitempty"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
}

// SLABreachPayload payload. Kind is "RESPONSE" or "RESOLUTION".
type SLABreachPayload struct {
	Kind        string               `json:"kind"`
	IssueNumber int64                `json:"issue_number"`
	Priority    domain.IssuePriority `json:"priority"`
	Deadline    time.Time            `json:"deadline"`
	BreachedAt  time.Time            `json:"breached_at"`
}

// IssueAutoClosedPayload payload.
type IssueAutoClosedPayload struct {
	IssueNumber int64     `json:"issue_number"`
	ResolvedAt  time.Time `json:"resolved_at"`
	ClosedAt    time.Time `json:"closed_at"`
}
