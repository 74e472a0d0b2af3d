package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/facilities-service/internal/domain"
	"github.com/spec-kit/facilities-service/internal/events"
	"github.com/spec-kit/facilities-service/internal/repository"
	"github.com/spec-kit/facilities-service/internal/sla"
	apperrors "github.com/spec-kit/facilities-service/pkg/util"
)

// IssueService coordinates issue creation and the lifecycle state machine.
type IssueService struct {
	issues      repository.IssueRepository
	categories  repository.CategoryRepository
	assignments repository.AssignmentRepository
	audit       repository.AuditRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// IssueDependencies bundles repositories for the issue service.
type IssueDependencies struct {
	IssueRepo      repository.IssueRepository
	CategoryRepo   repository.CategoryRepository
	AssignmentRepo repository.AssignmentRepository
	AuditRepo      repository.AuditRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// IssueCreateInput describes issue creation payload.
type IssueCreateInput struct {
	CategoryID  string
	Title       string
	Description string
	Location    string
	Priority    domain.IssuePriority
}

// IssueListFilter describes listing filters for staff views.
type IssueListFilter struct {
	Statuses   []domain.IssueStatus
	Priorities []domain.IssuePriority
	AssignedTo *string
	CategoryID *string
	Limit      int
	Offset     int
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueService{
		issues:      deps.IssueRepo,
		categories:  deps.CategoryRepo,
		assignments: deps.AssignmentRepo,
		audit:       deps.AuditRepo,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// allowedTransitions is the full lifecycle graph. CLOSED is terminal. Any
// pair not listed here is rejected.
var allowedTransitions = map[domain.IssueStatus][]domain.IssueStatus{
	domain.IssueStatusSubmitted:  {domain.IssueStatusAssigned, domain.IssueStatusClosed},
	domain.IssueStatusAssigned:   {domain.IssueStatusInProgress, domain.IssueStatusSubmitted},
	domain.IssueStatusInProgress: {domain.IssueStatusResolved, domain.IssueStatusAssigned},
	domain.IssueStatusResolved:   {domain.IssueStatusVerified, domain.IssueStatusInProgress},
	domain.IssueStatusVerified:   {domain.IssueStatusClosed},
	domain.IssueStatusClosed:     {},
}

func isValidTransition(current, next domain.IssueStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CreateIssue creates an issue and stamps both SLA deadlines from the
// category configuration. A category without an SLA entry for the requested
// priority blocks creation.
func (s *IssueService) CreateIssue(ctx context.Context, actor *domain.User, input IssueCreateInput) (*domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if input.CategoryID == "" || title == "" || description == "" {
		return nil, apperrors.NewValidationError("category_id, title, description required", nil)
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.IssuePriorityMedium
	}

	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("invalid category", map[string]any{"category_id": input.CategoryID})
		}
		return nil, apperrors.MapError(err)
	}
	if category.CampusID != actor.CampusID {
		return nil, apperrors.NewForbidden("category does not belong to your campus")
	}

	now := time.Now()
	deadlines, err := sla.ComputeDeadlines(category.SLAConfig, priority, now)
	if err != nil {
		return nil, err
	}

	issue := &domain.Issue{
		CampusID:              actor.CampusID,
		CreatedBy:             actor.ID,
		CategoryID:            category.ID,
		Title:                 title,
		Description:           description,
		Location:              strings.TrimSpace(input.Location),
		Priority:              priority,
		Status:                domain.IssueStatusSubmitted,
		SLAResponseDeadline:   deadlines.Response,
		SLAResolutionDeadline: deadlines.Resolution,
		CreatedAt:             now,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventIssueCreated,
		CampusID: issue.CampusID,
		IssueID:  issue.ID,
		Actor:    userActor(actor.ID),
		Payload: events.IssueCreatedPayload{
			IssueNumber: issue.IssueNumber,
			CategoryID:  issue.CategoryID,
			Priority:    issue.Priority,
			Title:       issue.Title,
		},
	})
	return issue, nil
}

// Transition applies a status change, enforcing the transition table, the
// assignee/elevated-role guard, and the per-transition side effects. The
// issue is left untouched on any rejection.
func (s *IssueService) Transition(ctx context.Context, actor *domain.User, issueID string, newStatus domain.IssueStatus, resolutionNotes string) (*domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	issue, err := s.getScoped(ctx, actor.CampusID, issueID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleStudent && issue.CreatedBy != actor.ID {
		return nil, apperrors.NewForbidden("you can only act on your own issues")
	}
	if !isValidTransition(issue.Status, newStatus) {
		return nil, apperrors.NewInvalidTransition(string(issue.Status), string(newStatus))
	}
	if newStatus == domain.IssueStatusInProgress || newStatus == domain.IssueStatusResolved {
		if !actor.Role.IsElevated() && (issue.AssignedTo == nil || *issue.AssignedTo != actor.ID) {
			return nil, apperrors.NewForbiddenTransition("only the current assignee can change to this status")
		}
	}

	oldStatus := issue.Status
	now := time.Now()

	switch newStatus {
	case domain.IssueStatusAssigned:
		// Re-entering ASSIGNED (work paused) keeps the current assignee but
		// still appends to the assignment log before the status change.
		if issue.AssignedTo == nil {
			return nil, apperrors.NewValidationError("issue has no assignee; use assign instead", nil)
		}
		note := "work returned to assigned"
		if err := s.assignments.Create(ctx, &domain.Assignment{
			IssueID:    issue.ID,
			AssignedTo: *issue.AssignedTo,
			AssignedBy: actor.ID,
			Note:       &note,
			AssignedAt: now,
		}); err != nil {
			return nil, apperrors.MapError(err)
		}
		issue.AssignedAt = &now
	case domain.IssueStatusInProgress:
		// Stamped once; later cycles back into IN_PROGRESS do not overwrite.
		if issue.FirstResponseAt == nil {
			issue.FirstResponseAt = &now
		}
	case domain.IssueStatusResolved:
		notes := strings.TrimSpace(resolutionNotes)
		if notes == "" {
			return nil, apperrors.NewValidationError("resolution notes required", nil)
		}
		issue.ResolutionNotes = &notes
		issue.ResolvedAt = &now
	case domain.IssueStatusVerified:
		issue.VerifiedAt = &now
	case domain.IssueStatusClosed:
		issue.ClosedAt = &now
	}

	issue.Status = newStatus
	if err := s.issues.UpdateState(ctx, issue, oldStatus); err != nil {
		if errors.Is(err, repository.ErrConcurrentUpdate) {
			return nil, apperrors.NewConflict("issue was modified concurrently, retry", map[string]any{"issue_id": issue.ID})
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventIssueStatusChanged,
		CampusID: issue.CampusID,
		IssueID:  issue.ID,
		Actor:    userActor(actor.ID),
		Payload: events.IssueStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return issue, nil
}

// GetIssue fetches an issue with its assignment history, enforcing that
// students only see their own issues.
func (s *IssueService) GetIssue(ctx context.Context, actor *domain.User, issueID string) (*domain.Issue, []domain.Assignment, error) {
	if actor == nil {
		return nil, nil, apperrors.NewUnauthorized("user required")
	}
	issue, err := s.getScoped(ctx, actor.CampusID, issueID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role == domain.RoleStudent && issue.CreatedBy != actor.ID {
		return nil, nil, apperrors.NewForbidden("you can only view your own issues")
	}
	history, err := s.assignments.ListByIssue(ctx, issue.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return issue, history, nil
}

// ListIssues returns campus-wide issues for staff and admin views.
func (s *IssueService) ListIssues(ctx context.Context, actor *domain.User, filter IssueListFilter) ([]domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	if actor.Role == domain.RoleStudent {
		return nil, apperrors.NewForbidden("staff role required")
	}
	repoFilter := repository.IssueFilter{
		CampusID:   actor.CampusID,
		AssignedTo: filter.AssignedTo,
		CategoryID: filter.CategoryID,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	issues, err := s.issues.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return issues, nil
}

// MyCreatedIssues returns issues reported by the actor.
func (s *IssueService) MyCreatedIssues(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	issues, err := s.issues.ListWithFilter(ctx, repository.IssueFilter{
		CampusID:  actor.CampusID,
		CreatedBy: &actor.ID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return issues, nil
}

// MyAssignedIssues returns open work for the acting staff member.
func (s *IssueService) MyAssignedIssues(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	if !actor.Role.CanReceiveAssignments() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	issues, err := s.issues.ListWithFilter(ctx, repository.IssueFilter{
		CampusID:   actor.CampusID,
		AssignedTo: &actor.ID,
		Statuses:   []domain.IssueStatus{domain.IssueStatusAssigned, domain.IssueStatusInProgress},
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return issues, nil
}

// DeleteIssue tombstones an issue. Admin only; the record stays in storage
// and drops out of every query.
func (s *IssueService) DeleteIssue(ctx context.Context, actor *domain.User, issueID string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("user required")
	}
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	issue, err := s.getScoped(ctx, actor.CampusID, issueID)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := s.issues.SoftDelete(ctx, issue.ID, actor.CampusID, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return apperrors.MapError(err)
	}
	s.recordAudit(ctx, &domain.AuditEntry{
		CampusID:   issue.CampusID,
		UserID:     &actor.ID,
		Action:     domain.AuditActionIssueDeleted,
		EntityType: "Issue",
		EntityID:   issue.ID,
		Changes: map[string]any{
			"issueNumber": issue.IssueNumber,
			"deletedAt":   now,
		},
	})
	return nil
}

func (s *IssueService) getScoped(ctx context.Context, campusID, issueID string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, issueID, campusID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

// recordAudit writes an audit entry without letting a sink failure roll back
// the triggering mutation.
func (s *IssueService) recordAudit(ctx context.Context, entry *domain.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", string(entry.Action)),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err))
	}
}

func (s *IssueService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func userActor(userID string) events.Actor {
	return events.Actor{UserID: &userID}
}

func systemActor() events.Actor {
	return events.Actor{System: true}
}
