package dto

import (
	"time"

	"github.com/spec-kit/facilities-service/internal/domain"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	CategoryID  string               `json:"category_id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Location    string               `json:"location"`
	Priority    domain.IssuePriority `json:"priority"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status          domain.IssueStatus `json:"status"`
	ResolutionNotes string             `json:"resolution_notes,omitempty"`
}

// AssignIssueRequest payload.
type AssignIssueRequest struct {
	AssignedTo string `json:"assigned_to"`
	Note       string `json:"note,omitempty"`
}

// IssueSummary response.
type IssueSummary struct {
	ID                    string               `json:"id"`
	IssueNumber           int64                `json:"issue_number"`
	CategoryID            string               `json:"category_id"`
	AssignedTo            *string              `json:"assigned_to,omitempty"`
	Title                 string               `json:"title"`
	Location              string               `json:"location"`
	Priority              domain.IssuePriority `json:"priority"`
	Status                domain.IssueStatus   `json:"status"`
	SLAResponseDeadline   time.Time            `json:"sla_response_deadline"`
	SLAResolutionDeadline time.Time            `json:"sla_resolution_deadline"`
	SLAResponseBreached   bool                 `json:"sla_response_breached"`
	SLAResolutionBreached bool                 `json:"sla_resolution_breached"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

// IssueDetailResponse provides full issue info including the assignment log.
type IssueDetailResponse struct {
	IssueSummary
	CreatedBy               string               `json:"created_by"`
	Description             string               `json:"description"`
	ResolutionNotes         *string              `json:"resolution_notes,omitempty"`
	SLAResponseBreachedAt   *time.Time           `json:"sla_response_breached_at,omitempty"`
	SLAResolutionBreachedAt *time.Time           `json:"sla_resolution_breached_at,omitempty"`
	AssignedAt              *time.Time           `json:"assigned_at,omitempty"`
	FirstResponseAt         *time.Time           `json:"first_response_at,omitempty"`
	ResolvedAt              *time.Time           `json:"resolved_at,omitempty"`
	VerifiedAt              *time.Time           `json:"verified_at,omitempty"`
	ClosedAt                *time.Time           `json:"closed_at,omitempty"`
	Assignments             []AssignmentResponse `json:"assignments"`
}

// AssignmentResponse represents one assignment log entry.
type AssignmentResponse struct {
	ID         string    `json:"id"`
	AssignedTo string    `json:"assigned_to"`
	AssignedBy string    `json:"assigned_by"`
	Note       *string   `json:"note,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}
