package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/facilities-service/internal/domain"
)

// AssignmentRepository stores the append-only assignment log. Entries are
// never updated or deleted.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	ListByIssue(ctx context.Context, issueID string) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO assignments (issue_id, assigned_to, assigned_by, note, assigned_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, assigned_at`
	return r.pool.QueryRow(ctx, query,
		assignment.IssueID,
		assignment.AssignedTo,
		assignment.AssignedBy,
		assignment.Note,
		assignment.AssignedAt,
	).Scan(&assignment.ID, &assignment.AssignedAt)
}

func (r *assignmentRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.Assignment, error) {
	const query = `
        SELECT id, issue_id, assigned_to, assigned_by, note, assigned_at
        FROM assignments WHERE issue_id=$1 ORDER BY assigned_at DESC`
	rows, err := r.pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var assignment domain.Assignment
		if err := rows.Scan(
			&assignment.ID,
			&assignment.IssueID,
			&assignment.AssignedTo,
			&assignment.AssignedBy,
			&assignment.Note,
			&assignment.AssignedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}
