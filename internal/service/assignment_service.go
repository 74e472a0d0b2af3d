package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/facilities-service/internal/domain"
	"github.com/spec-kit/facilities-service/internal/events"
	"github.com/spec-kit/facilities-service/internal/repository"
	apperrors "github.com/spec-kit/facilities-service/pkg/util"
)

// AssignmentService hands issues to staff and keeps the issue's current
// assignee pointer consistent with the append-only assignment log.
type AssignmentService struct {
	issues      repository.IssueRepository
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	dispatcher  events.Dispatcher
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	IssueRepo      repository.IssueRepository
	UserRepo       repository.UserRepository
	AssignmentRepo repository.AssignmentRepository
	Dispatcher     events.Dispatcher
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		issues:      deps.IssueRepo,
		users:       deps.UserRepo,
		assignments: deps.AssignmentRepo,
		dispatcher:  deps.Dispatcher,
	}
}

// Assign hands an issue to a staff member. A submitted issue transitions to
// ASSIGNED; an issue already past ASSIGNED only gets its pointer updated
// (pure reassignment). Either way a new log entry is appended first.
func (s *AssignmentService) Assign(ctx context.Context, actor *domain.User, issueID, assigneeID string, note string) (*domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	if !actor.Role.CanReceiveAssignments() {
		return nil, apperrors.NewForbidden("insufficient role for assignment")
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidAssignee("assignee not found", map[string]any{"user_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if assignee.CampusID != actor.CampusID {
		return nil, apperrors.NewInvalidAssignee("assignee belongs to another campus", map[string]any{"user_id": assigneeID})
	}
	if !assignee.Role.CanReceiveAssignments() {
		return nil, apperrors.NewInvalidAssignee("can only assign to STAFF or ADMIN users", map[string]any{"user_id": assigneeID, "role": assignee.Role})
	}
	if !assignee.Active {
		return nil, apperrors.NewInvalidAssignee("assignee inactive", map[string]any{"user_id": assigneeID})
	}

	issue, err := s.issues.GetByID(ctx, issueID, actor.CampusID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	if issue.Status.IsTerminal() {
		return nil, apperrors.NewConflict("issue is closed", map[string]any{"issue_id": issueID})
	}

	now := time.Now()
	record := &domain.Assignment{
		IssueID:    issue.ID,
		AssignedTo: assignee.ID,
		AssignedBy: actor.ID,
		AssignedAt: now,
	}
	if trimmed := strings.TrimSpace(note); trimmed != "" {
		record.Note = &trimmed
	}
	if err := s.assignments.Create(ctx, record); err != nil {
		return nil, apperrors.MapError(err)
	}

	if issue.Status == domain.IssueStatusSubmitted {
		oldStatus := issue.Status
		issue.Status = domain.IssueStatusAssigned
		issue.AssignedTo = &assignee.ID
		issue.AssignedAt = &now
		if err := s.issues.UpdateState(ctx, issue, oldStatus); err != nil {
			if errors.Is(err, repository.ErrConcurrentUpdate) {
				return nil, apperrors.NewConflict("issue was modified concurrently, retry", map[string]any{"issue_id": issue.ID})
			}
			return nil, apperrors.MapError(err)
		}
	} else {
		if err := s.issues.SetAssignee(ctx, issue.ID, actor.CampusID, assignee.ID, now); err != nil {
			return nil, apperrors.MapError(err)
		}
		issue.AssignedTo = &assignee.ID
		issue.AssignedAt = &now
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventIssueAssigned,
		CampusID: issue.CampusID,
		IssueID:  issue.ID,
		Actor:    userActor(actor.ID),
		Payload: events.IssueAssignedPayload{
			AssignedTo: assignee.ID,
			AssignedBy: actor.ID,
			Note:       record.Note,
		},
	})
	return issue, nil
}

// History returns the full assignment log for an issue, newest first.
func (s *AssignmentService) History(ctx context.Context, actor *domain.User, issueID string) ([]domain.Assignment, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	if _, err := s.issues.GetByID(ctx, issueID, actor.CampusID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, apperrors.MapError(err)
	}
	history, err := s.assignments.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

func (s *AssignmentService) publishEvent(ctx context.Context, event events.Event) {
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
