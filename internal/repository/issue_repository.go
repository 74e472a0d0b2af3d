package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/facilities-service/internal/domain"
)

// ErrConcurrentUpdate signals that a compare-and-set update found the issue in
// a different state than expected. Callers re-read and retry or surface a
// conflict; nothing was written.
var ErrConcurrentUpdate = errors.New("issue modified concurrently")

// IssueFilter captures campus-scoped listing parameters. Tombstoned issues
// are always excluded.
type IssueFilter struct {
	CampusID    string
	CreatedBy   *string
	AssignedTo  *string
	CategoryID  *string
	Statuses    []domain.IssueStatus
	Priorities  []domain.IssuePriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// SLAStatsRow aggregates breach counts for a campus.
type SLAStatsRow struct {
	TotalIssues        int64
	ResponseBreaches   int64
	ResolutionBreaches int64
}

// IssueRepository encapsulates issue persistence.
//
// Every query filters deleted_at IS NULL explicitly; soft-delete is a
// predicate at each site, never implicit middleware.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id, campusID string) (*domain.Issue, error)
	// UpdateState writes status, assignee pointer, resolution notes and all
	// lifecycle timestamps, but only while the stored status still equals
	// expected. Returns ErrConcurrentUpdate otherwise.
	UpdateState(ctx context.Context, issue *domain.Issue, expected domain.IssueStatus) error
	SetAssignee(ctx context.Context, id, campusID, assigneeID string, at time.Time) error
	ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	ListResponseBreachCandidates(ctx context.Context, now time.Time) ([]domain.Issue, error)
	ListResolutionBreachCandidates(ctx context.Context, now time.Time) ([]domain.Issue, error)
	// MarkResponseBreached flips the response breach flag if and only if it is
	// still false. Reports whether this call flipped it.
	MarkResponseBreached(ctx context.Context, id string, at time.Time) (bool, error)
	MarkResolutionBreached(ctx context.Context, id string, at time.Time) (bool, error)
	ListAutoCloseCandidates(ctx context.Context, cutoff time.Time) ([]domain.Issue, error)
	// CloseResolved closes an issue still in RESOLVED, stamping verified_at
	// and closed_at to the sweep time. Reports whether the row was closed by
	// this call.
	CloseResolved(ctx context.Context, id string, at time.Time) (bool, error)
	SoftDelete(ctx context.Context, id, campusID string, at time.Time) error
	SLAStats(ctx context.Context, campusID string) (*SLAStatsRow, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, campus_id, issue_number, created_by, category_id, assigned_to,
               title, description, location, priority, status, resolution_notes,
               sla_response_deadline, sla_resolution_deadline,
               sla_response_breached, sla_response_breached_at,
               sla_resolution_breached, sla_resolution_breached_at,
               assigned_at, first_response_at, resolved_at, verified_at, closed_at,
               created_at, updated_at, deleted_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	// The counter upsert allocates the per-campus sequential number
	// atomically; concurrent creators in the same campus never collide.
	const query = `
        WITH seq AS (
            INSERT INTO campus_issue_counters AS c (campus_id, last_number)
            VALUES ($1, 1)
            ON CONFLICT (campus_id) DO UPDATE SET last_number = c.last_number + 1
            RETURNING last_number
        )
        INSERT INTO issues (campus_id, issue_number, created_by, category_id, title,
                            description, location, priority, status,
                            sla_response_deadline, sla_resolution_deadline, created_at, updated_at)
        SELECT $1, seq.last_number, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11 FROM seq
        RETURNING id, issue_number, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		issue.CampusID,
		issue.CreatedBy,
		issue.CategoryID,
		issue.Title,
		issue.Description,
		issue.Location,
		issue.Priority,
		issue.Status,
		issue.SLAResponseDeadline,
		issue.SLAResolutionDeadline,
		issue.CreatedAt,
	).Scan(&issue.ID, &issue.IssueNumber, &issue.CreatedAt, &issue.UpdatedAt)
}

func (r *issueRepository) GetByID(ctx context.Context, id, campusID string) (*domain.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE id=$1 AND campus_id=$2 AND deleted_at IS NULL`, issueColumns)
	var issue domain.Issue
	if err := scanIssue(r.pool.QueryRow(ctx, query, id, campusID), &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *issueRepository) UpdateState(ctx context.Context, issue *domain.Issue, expected domain.IssueStatus) error {
	const query = `
        UPDATE issues SET status=$1, assigned_to=$2, resolution_notes=$3,
            assigned_at=$4, first_response_at=$5, resolved_at=$6, verified_at=$7, closed_at=$8,
            updated_at=NOW()
        WHERE id=$9 AND campus_id=$10 AND status=$11 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query,
		issue.Status,
		issue.AssignedTo,
		issue.ResolutionNotes,
		issue.AssignedAt,
		issue.FirstResponseAt,
		issue.ResolvedAt,
		issue.VerifiedAt,
		issue.ClosedAt,
		issue.ID,
		issue.CampusID,
		expected,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

func (r *issueRepository) SetAssignee(ctx context.Context, id, campusID, assigneeID string, at time.Time) error {
	const query = `
        UPDATE issues SET assigned_to=$1, assigned_at=$2, updated_at=NOW()
        WHERE id=$3 AND campus_id=$4 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, assigneeID, at, id, campusID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *issueRepository) ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	base := fmt.Sprintf(`SELECT %s FROM issues`, issueColumns)
	clauses := []string{"deleted_at IS NULL"}
	args := []any{filter.CampusID}
	clauses = append(clauses, "campus_id=$1")

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) ListResponseBreachCandidates(ctx context.Context, now time.Time) ([]domain.Issue, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM issues
        WHERE status='SUBMITTED' AND sla_response_deadline < $1
          AND sla_response_breached=FALSE AND deleted_at IS NULL
        ORDER BY sla_response_deadline ASC`, issueColumns)
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) ListResolutionBreachCandidates(ctx context.Context, now time.Time) ([]domain.Issue, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM issues
        WHERE status IN ('ASSIGNED','IN_PROGRESS') AND sla_resolution_deadline < $1
          AND sla_resolution_breached=FALSE AND deleted_at IS NULL
        ORDER BY sla_resolution_deadline ASC`, issueColumns)
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) MarkResponseBreached(ctx context.Context, id string, at time.Time) (bool, error) {
	// Conditional on the flag still being false: a concurrent sweep instance
	// degrades to a no-op instead of a duplicate breach record.
	const query = `
        UPDATE issues SET sla_response_breached=TRUE, sla_response_breached_at=$1, updated_at=NOW()
        WHERE id=$2 AND sla_response_breached=FALSE AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *issueRepository) MarkResolutionBreached(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE issues SET sla_resolution_breached=TRUE, sla_resolution_breached_at=$1, updated_at=NOW()
        WHERE id=$2 AND sla_resolution_breached=FALSE AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *issueRepository) ListAutoCloseCandidates(ctx context.Context, cutoff time.Time) ([]domain.Issue, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM issues
        WHERE status='RESOLVED' AND resolved_at < $1 AND deleted_at IS NULL
        ORDER BY resolved_at ASC`, issueColumns)
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (r *issueRepository) CloseResolved(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE issues SET status='CLOSED', verified_at=$1, closed_at=$1, updated_at=NOW()
        WHERE id=$2 AND status='RESOLVED' AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *issueRepository) SoftDelete(ctx context.Context, id, campusID string, at time.Time) error {
	const query = `
        UPDATE issues SET deleted_at=$1, updated_at=NOW()
        WHERE id=$2 AND campus_id=$3 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, id, campusID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *issueRepository) SLAStats(ctx context.Context, campusID string) (*SLAStatsRow, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE sla_response_breached),
               COUNT(*) FILTER (WHERE sla_resolution_breached)
        FROM issues WHERE campus_id=$1 AND deleted_at IS NULL`
	var row SLAStatsRow
	if err := r.pool.QueryRow(ctx, query, campusID).Scan(
		&row.TotalIssues,
		&row.ResponseBreaches,
		&row.ResolutionBreaches,
	); err != nil {
		return nil, err
	}
	return &row, nil
}

func scanIssue(row pgx.Row, issue *domain.Issue) error {
	return row.Scan(
		&issue.ID,
		&issue.CampusID,
		&issue.IssueNumber,
		&issue.CreatedBy,
		&issue.CategoryID,
		&issue.AssignedTo,
		&issue.Title,
		&issue.Description,
		&issue.Location,
		&issue.Priority,
		&issue.Status,
		&issue.ResolutionNotes,
		&issue.SLAResponseDeadline,
		&issue.SLAResolutionDeadline,
		&issue.SLAResponseBreached,
		&issue.SLAResponseBreachedAt,
		&issue.SLAResolutionBreached,
		&issue.SLAResolutionBreachedAt,
		&issue.AssignedAt,
		&issue.FirstResponseAt,
		&issue.ResolvedAt,
		&issue.VerifiedAt,
		&issue.ClosedAt,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&issue.DeletedAt,
	)
}

func scanIssues(rows pgx.Rows) ([]domain.Issue, error) {
	var result []domain.Issue
	for rows.Next() {
		var issue domain.Issue
		if err := scanIssue(rows, &issue); err != nil {
			return nil, err
		}
		result = append(result, issue)
	}
	return result, rows.Err()
}
