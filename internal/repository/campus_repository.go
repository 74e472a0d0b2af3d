package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/facilities-service/internal/domain"
)

// CampusRepository encapsulates campus (tenant) persistence.
type CampusRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Campus, error)
	List(ctx context.Context) ([]domain.Campus, error)
}

type campusRepository struct {
	pool *pgxpool.Pool
}

// NewCampusRepository instantiates repository.
func NewCampusRepository(pool *pgxpool.Pool) CampusRepository {
	return &campusRepository{pool: pool}
}

func (r *campusRepository) GetByID(ctx context.Context, id string) (*domain.Campus, error) {
	const query = `
        SELECT id, name, address, created_at, updated_at
        FROM campuses WHERE id=$1`
	var campus domain.Campus
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&campus.ID,
		&campus.Name,
		&campus.Address,
		&campus.CreatedAt,
		&campus.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &campus, nil
}

func (r *campusRepository) List(ctx context.Context) ([]domain.Campus, error) {
	const query = `
        SELECT id, name, address, created_at, updated_at
        FROM campuses ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Campus
	for rows.Next() {
		var campus domain.Campus
		if err := rows.Scan(
			&campus.ID,
			&campus.Name,
			&campus.Address,
			&campus.CreatedAt,
			&campus.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, campus)
	}
	return result, rows.Err()
}
