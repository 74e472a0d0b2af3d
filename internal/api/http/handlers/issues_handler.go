package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facilities-service/internal/api/dto"
	"github.com/spec-kit/facilities-service/internal/auth"
	"github.com/spec-kit/facilities-service/internal/domain"
	"github.com/spec-kit/facilities-service/internal/service"
	apperrors "github.com/spec-kit/facilities-service/pkg/util"
)

// IssuesHandler manages issue lifecycle endpoints.
type IssuesHandler struct {
	issues      *service.IssueService
	assignments *service.AssignmentService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService, assignmentService *service.AssignmentService) *IssuesHandler {
	return &IssuesHandler{issues: issueService, assignments: assignmentService}
}

// CreateIssue POST /issues.
func (h *IssuesHandler) CreateIssue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issue, err := h.issues.CreateIssue(c.Context(), principal.User, service.IssueCreateInput{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueSummary(issue)})
}

// ListIssues GET /issues (staff and admin, campus-wide).
func (h *IssuesHandler) ListIssues(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	issues, err := h.issues.ListIssues(c.Context(), principal.User, parseIssueQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueSummaries(issues)})
}

// MyCreatedIssues GET /issues/my-created.
func (h *IssuesHandler) MyCreatedIssues(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	limit, offset := parsePagination(c)
	issues, err := h.issues.MyCreatedIssues(c.Context(), principal.User, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueSummaries(issues)})
}

// MyAssignedIssues GET /issues/my-assigned.
func (h *IssuesHandler) MyAssignedIssues(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	limit, offset := parsePagination(c)
	issues, err := h.issues.MyAssignedIssues(c.Context(), principal.User, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueSummaries(issues)})
}

// GetIssue GET /issues/:id.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	issue, history, err := h.issues.GetIssue(c.Context(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueDetail(issue, history)})
}

// UpdateStatus PATCH /issues/:id/status.
func (h *IssuesHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	issue, err := h.issues.Transition(c.Context(), principal.User, c.Params("id"), req.Status, req.ResolutionNotes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueSummary(issue)})
}

// AssignIssue PATCH /issues/:id/assign.
func (h *IssuesHandler) AssignIssue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.AssignIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssignedTo == "" {
		return apperrors.NewValidationError("assigned_to required", nil)
	}
	issue, err := h.assignments.Assign(c.Context(), principal.User, c.Params("id"), req.AssignedTo, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueSummary(issue)})
}

// DeleteIssue DELETE /issues/:id (admin tombstone).
func (h *IssuesHandler) DeleteIssue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.issues.DeleteIssue(c.Context(), principal.User, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseIssueQuery(c *fiber.Ctx) service.IssueListFilter {
	filter := service.IssueListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.IssueStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.IssuePriority(strings.TrimSpace(part)))
		}
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if category := c.Query("category_id"); category != "" {
		filter.CategoryID = &category
	}
	filter.Limit, filter.Offset = parsePagination(c)
	return filter
}

func parsePagination(c *fiber.Ctx) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	return limit, offset
}

func issueSummary(issue *domain.Issue) dto.IssueSummary {
	return dto.IssueSummary{
		ID:                    issue.ID,
		IssueNumber:           issue.IssueNumber,
		CategoryID:            issue.CategoryID,
		AssignedTo:            issue.AssignedTo,
		Title:                 issue.Title,
		Location:              issue.Location,
		Priority:              issue.Priority,
		Status:                issue.Status,
		SLAResponseDeadline:   issue.SLAResponseDeadline,
		SLAResolutionDeadline: issue.SLAResolutionDeadline,
		SLAResponseBreached:   issue.SLAResponseBreached,
		SLAResolutionBreached: issue.SLAResolutionBreached,
		CreatedAt:             issue.CreatedAt,
		UpdatedAt:             issue.UpdatedAt,
	}
}

func issueSummaries(issues []domain.Issue) []dto.IssueSummary {
	items := make([]dto.IssueSummary, 0, len(issues))
	for i := range issues {
		items = append(items, issueSummary(&issues[i]))
	}
	return items
}

func issueDetail(issue *domain.Issue, history []domain.Assignment) dto.IssueDetailResponse {
	detail := dto.IssueDetailResponse{
		IssueSummary:            issueSummary(issue),
		CreatedBy:               issue.CreatedBy,
		Description:             issue.Description,
		ResolutionNotes:         issue.ResolutionNotes,
		SLAResponseBreachedAt:   issue.SLAResponseBreachedAt,
		SLAResolutionBreachedAt: issue.SLAResolutionBreachedAt,
		AssignedAt:              issue.AssignedAt,
		FirstResponseAt:         issue.FirstResponseAt,
		ResolvedAt:              issue.ResolvedAt,
		VerifiedAt:              issue.VerifiedAt,
		ClosedAt:                issue.ClosedAt,
		Assignments:             make([]dto.AssignmentResponse, 0, len(history)),
	}
	for _, entry := range history {
		detail.Assignments = append(detail.Assignments, dto.AssignmentResponse{
			ID:         entry.ID,
			AssignedTo: entry.AssignedTo,
			AssignedBy: entry.AssignedBy,
			Note:       entry.Note,
			AssignedAt: entry.AssignedAt,
		})
	}
	return detail
}
