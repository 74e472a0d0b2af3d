package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/facilities-service/internal/domain"
	"github.com/spec-kit/facilities-service/internal/repository"
	apperrors "github.com/spec-kit/facilities-service/pkg/util"
)

// CategoryService manages issue categories and their SLA tables.
type CategoryService struct {
	categories repository.CategoryRepository
}

// NewCategoryService builds the service.
func NewCategoryService(categoryRepo repository.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categoryRepo}
}

// CategoryCreateInput describes a new category.
type CategoryCreateInput struct {
	Name        string
	Description string
	SLAConfig   domain.SLAConfig
}

var requiredPriorities = []domain.IssuePriority{
	domain.IssuePriorityLow,
	domain.IssuePriorityMedium,
	domain.IssuePriorityHigh,
	domain.IssuePriorityCritical,
}

// Create adds a category to the actor's campus. The SLA table must carry an
// entry for every priority so issue creation never hits a missing row.
func (s *CategoryService) Create(ctx context.Context, actor *domain.User, input CategoryCreateInput) (*domain.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	for _, priority := range requiredPriorities {
		target, ok := input.SLAConfig[priority]
		if !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("sla_config missing priority %s", priority), nil)
		}
		if target.ResponseMinutes <= 0 || target.ResolutionHours <= 0 {
			return nil, apperrors.NewValidationError(fmt.Sprintf("sla_config targets for %s must be positive", priority), nil)
		}
	}

	category := &domain.Category{
		CampusID:    actor.CampusID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		SLAConfig:   input.SLAConfig,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Get fetches a single category, scoped to the actor's campus.
func (s *CategoryService) Get(ctx context.Context, actor *domain.User, id string) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": id})
		}
		return nil, err
	}
	if category.CampusID != actor.CampusID {
		return nil, apperrors.NewNotFound("category", map[string]any{"category_id": id})
	}
	return category, nil
}

// List returns all categories on the actor's campus.
func (s *CategoryService) List(ctx context.Context, actor *domain.User) ([]domain.Category, error) {
	return s.categories.ListByCampus(ctx, actor.CampusID)
}
