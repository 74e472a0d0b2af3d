package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/facilities-service/internal/domain"
	"github.com/spec-kit/facilities-service/internal/events"
	"github.com/spec-kit/facilities-service/internal/repository"
)

// memIssueRepo is an in-memory IssueRepository with the same conditional
// update semantics as the SQL implementation.
type memIssueRepo struct {
	mu       sync.Mutex
	issues   map[string]*domain.Issue
	counters map[string]int64
	nextID   int
}

func newMemIssueRepo() *memIssueRepo {
	return &memIssueRepo{
		issues:   make(map[string]*domain.Issue),
		counters: make(map[string]int64),
	}
}

func (r *memIssueRepo) put(issue *domain.Issue) *domain.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if issue.ID == "" {
		r.nextID++
		issue.ID = fmt.Sprintf("issue-%d", r.nextID)
	}
	if issue.IssueNumber == 0 {
		r.counters[issue.CampusID]++
		issue.IssueNumber = r.counters[issue.CampusID]
	}
	clone := *issue
	r.issues[issue.ID] = &clone
	return issue
}

func (r *memIssueRepo) get(id string) *domain.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.issues[id]; ok {
		clone := *stored
		return &clone
	}
	return nil
}

func (r *memIssueRepo) Create(ctx context.Context, issue *domain.Issue) error {
	r.put(issue)
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}
	return nil
}

func (r *memIssueRepo) GetByID(ctx context.Context, id, campusID string) (*domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[id]
	if !ok || stored.CampusID != campusID || stored.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *memIssueRepo) UpdateState(ctx context.Context, issue *domain.Issue, expected domain.IssueStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[issue.ID]
	if !ok || stored.CampusID != issue.CampusID || stored.DeletedAt != nil || stored.Status != expected {
		return repository.ErrConcurrentUpdate
	}
	stored.Status = issue.Status
	stored.AssignedTo = issue.AssignedTo
	stored.ResolutionNotes = issue.ResolutionNotes
	stored.AssignedAt = issue.AssignedAt
	stored.FirstResponseAt = issue.FirstResponseAt
	stored.ResolvedAt = issue.ResolvedAt
	stored.VerifiedAt = issue.VerifiedAt
	stored.ClosedAt = issue.ClosedAt
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *memIssueRepo) SetAssignee(ctx context.Context, id, campusID, assigneeID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[id]
	if !ok || stored.CampusID != campusID || stored.DeletedAt != nil {
		return pgx.ErrNoRows
	}
	stored.AssignedTo = &assigneeID
	stored.AssignedAt = &at
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *memIssueRepo) ListWithFilter(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Issue
	for _, stored := range r.issues {
		if stored.DeletedAt != nil || stored.CampusID != filter.CampusID {
			continue
		}
		if filter.CreatedBy != nil && stored.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (stored.AssignedTo == nil || *stored.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.CategoryID != nil && stored.CategoryID != *filter.CategoryID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, stored.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, stored.Priority) {
			continue
		}
		result = append(result, *stored)
	}
	return result, nil
}

func (r *memIssueRepo) ListResponseBreachCandidates(ctx context.Context, now time.Time) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Issue
	for _, stored := range r.issues {
		if stored.DeletedAt != nil {
			continue
		}
		if stored.Status == domain.IssueStatusSubmitted &&
			stored.SLAResponseDeadline.Before(now) && !stored.SLAResponseBreached {
			result = append(result, *stored)
		}
	}
	return result, nil
}

func (r *memIssueRepo) ListResolutionBreachCandidates(ctx context.Context, now time.Time) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Issue
	for _, stored := range r.issues {
		if stored.DeletedAt != nil {
			continue
		}
		if (stored.Status == domain.IssueStatusAssigned || stored.Status == domain.IssueStatusInProgress) &&
			stored.SLAResolutionDeadline.Before(now) && !stored.SLAResolutionBreached {
			result = append(result, *stored)
		}
	}
	return result, nil
}

func (r *memIssueRepo) MarkResponseBreached(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[id]
	if !ok || stored.DeletedAt != nil || stored.SLAResponseBreached {
		return false, nil
	}
	stored.SLAResponseBreached = true
	stamp := at
	stored.SLAResponseBreachedAt = &stamp
	return true, nil
}

func (r *memIssueRepo) MarkResolutionBreached(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[id]
	if !ok || stored.DeletedAt != nil || stored.SLAResolutionBreached {
		return false, nil
	}
	stored.SLAResolutionBreached = true
	stamp := at
	stored.SLAResolutionBreachedAt = &stamp
	return true, nil
}

func (r *memIssueRepo) ListAutoCloseCandidates(ctx context.Context, cutoff time.Time) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Issue
	for _, stored := range r.issues {
		if stored.DeletedAt != nil {
			continue
		}
		if stored.Status == domain.IssueStatusResolved &&
			stored.ResolvedAt != nil && stored.ResolvedAt.Before(cutoff) {
			result = append(result, *stored)
		}
	}
	return result, nil
}

func (r *memIssueRepo) CloseResolved(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[id]
	if !ok || stored.DeletedAt != nil || stored.Status != domain.IssueStatusResolved {
		return false, nil
	}
	stored.Status = domain.IssueStatusClosed
	stamp := at
	stored.VerifiedAt = &stamp
	stored.ClosedAt = &stamp
	return true, nil
}

func (r *memIssueRepo) SoftDelete(ctx context.Context, id, campusID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[id]
	if !ok || stored.CampusID != campusID || stored.DeletedAt != nil {
		return pgx.ErrNoRows
	}
	stamp := at
	stored.DeletedAt = &stamp
	return nil
}

func (r *memIssueRepo) SLAStats(ctx context.Context, campusID string) (*repository.SLAStatsRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var row repository.SLAStatsRow
	for _, stored := range r.issues {
		if stored.DeletedAt != nil || stored.CampusID != campusID {
			continue
		}
		row.TotalIssues++
		if stored.SLAResponseBreached {
			row.ResponseBreaches++
		}
		if stored.SLAResolutionBreached {
			row.ResolutionBreaches++
		}
	}
	return &row, nil
}

func containsStatus(list []domain.IssueStatus, status domain.IssueStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.IssuePriority, priority domain.IssuePriority) bool {
	for _, candidate := range list {
		if candidate == priority {
			return true
		}
	}
	return false
}

type memCategoryRepo struct {
	mu         sync.Mutex
	categories map[string]*domain.Category
}

func newMemCategoryRepo() *memCategoryRepo {
	return &memCategoryRepo{categories: make(map[string]*domain.Category)}
}

func (r *memCategoryRepo) put(category *domain.Category) *domain.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *category
	r.categories[category.ID] = &clone
	return category
}

func (r *memCategoryRepo) Create(ctx context.Context, category *domain.Category) error {
	if category.ID == "" {
		category.ID = fmt.Sprintf("cat-%d", len(r.categories)+1)
	}
	category.CreatedAt = time.Now()
	category.UpdatedAt = category.CreatedAt
	r.put(category)
	return nil
}

func (r *memCategoryRepo) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *memCategoryRepo) ListByCampus(ctx context.Context, campusID string) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Category
	for _, stored := range r.categories {
		if stored.CampusID == campusID {
			result = append(result, *stored)
		}
	}
	return result, nil
}

type memAssignmentRepo struct {
	mu      sync.Mutex
	entries []domain.Assignment
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{}
}

func (r *memAssignmentRepo) Create(ctx context.Context, assignment *domain.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if assignment.ID == "" {
		assignment.ID = fmt.Sprintf("asg-%d", len(r.entries)+1)
	}
	r.entries = append(r.entries, *assignment)
	return nil
}

func (r *memAssignmentRepo) ListByIssue(ctx context.Context, issueID string) ([]domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Assignment
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].IssueID == issueID {
			result = append(result, r.entries[i])
		}
	}
	return result, nil
}

// memAuditRepo records entries; failNext makes the next write fail to test
// fire-and-forget behavior.
type memAuditRepo struct {
	mu       sync.Mutex
	entries  []domain.AuditEntry
	failNext bool
}

func newMemAuditRepo() *memAuditRepo {
	return &memAuditRepo{}
}

func (r *memAuditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errors.New("audit sink unavailable")
	}
	entry.ID = fmt.Sprintf("audit-%d", len(r.entries)+1)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) ListByCampus(ctx context.Context, campusID string, limit, offset int) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AuditEntry
	for _, entry := range r.entries {
		if entry.CampusID == campusID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *memAuditRepo) byAction(action domain.AuditAction) []domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AuditEntry
	for _, entry := range r.entries {
		if entry.Action == action {
			result = append(result, entry)
		}
	}
	return result
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) put(user *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *user
	r.users[user.ID] = &clone
	return user
}

func (r *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(r.users)+1)
	}
	r.put(user)
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.users {
		if stored.Email == email {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memCampusRepo struct {
	mu       sync.Mutex
	campuses map[string]*domain.Campus
}

func newMemCampusRepo() *memCampusRepo {
	return &memCampusRepo{campuses: make(map[string]*domain.Campus)}
}

func (r *memCampusRepo) put(campus *domain.Campus) *domain.Campus {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *campus
	r.campuses[campus.ID] = &clone
	return campus
}

func (r *memCampusRepo) GetByID(ctx context.Context, id string) (*domain.Campus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.campuses[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (r *memCampusRepo) List(ctx context.Context) ([]domain.Campus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Campus
	for _, stored := range r.campuses {
		result = append(result, *stored)
	}
	return result, nil
}

// capturingDispatcher records published events for assertions.
type capturingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func newCapturingDispatcher() *capturingDispatcher {
	return &capturingDispatcher{}
}

func (d *capturingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *capturingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}
