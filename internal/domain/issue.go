package domain

import "time"

// IssueStatus enumerates lifecycle states for facility issues.
type IssueStatus string

const (
	IssueStatusSubmitted  IssueStatus = "SUBMITTED"
	IssueStatusAssigned   IssueStatus = "ASSIGNED"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
	IssueStatusVerified   IssueStatus = "VERIFIED"
	IssueStatusClosed     IssueStatus = "CLOSED"
)

// IsTerminal reports whether the status has no outgoing transitions.
func (s IssueStatus) IsTerminal() bool {
	return s == IssueStatusClosed
}

// IssuePriority enumerates SLA urgency, ordered LOW < MEDIUM < HIGH < CRITICAL.
type IssuePriority string

const (
	IssuePriorityLow      IssuePriority = "LOW"
	IssuePriorityMedium   IssuePriority = "MEDIUM"
	IssuePriorityHigh     IssuePriority = "HIGH"
	IssuePriorityCritical IssuePriority = "CRITICAL"
)

// Rank returns the ordinal position of the priority for comparisons.
// Unknown priorities rank below LOW.
func (p IssuePriority) Rank() int {
	switch p {
	case IssuePriorityLow:
		return 1
	case IssuePriorityMedium:
		return 2
	case IssuePriorityHigh:
		return 3
	case IssuePriorityCritical:
		return 4
	default:
		return 0
	}
}

// Issue is the aggregate for reported facility problems.
//
// Deadlines are computed once at creation from the category SLA table and are
// never recomputed. Breach flags are monotonic: once set they stay set. The
// tombstone DeletedAt excludes the record from every query site.
type Issue struct {
	ID                      string
	CampusID                string
	IssueNumber             int64
	CreatedBy               string
	CategoryID              string
	AssignedTo              *string
	Title                   string
	Description             string
	Location                string
	Priority                IssuePriority
	Status                  IssueStatus
	ResolutionNotes         *string
	SLAResponseDeadline     time.Time
	SLAResolutionDeadline   time.Time
	SLAResponseBreached     bool
	SLAResponseBreachedAt   *time.Time
	SLAResolutionBreached   bool
	SLAResolutionBreachedAt *time.Time
	AssignedAt              *time.Time
	FirstResponseAt         *time.Time
	ResolvedAt              *time.Time
	VerifiedAt              *time.Time
	ClosedAt                *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
	DeletedAt               *time.Time
}
