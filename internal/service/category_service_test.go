package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/facilities-service/internal/domain"
	apperrors "github.com/spec-kit/facilities-service/pkg/util"
)

func fullSLAConfig() domain.SLAConfig {
	return domain.SLAConfig{
		domain.IssuePriorityLow:      {ResponseMinutes: 2880, ResolutionHours: 168},
		domain.IssuePriorityMedium:   {ResponseMinutes: 1440, ResolutionHours: 72},
		domain.IssuePriorityHigh:     {ResponseMinutes: 240, ResolutionHours: 24},
		domain.IssuePriorityCritical: {ResponseMinutes: 60, ResolutionHours: 4},
	}
}

func TestCreateCategoryRequiresFullSLATable(t *testing.T) {
	repo := newMemCategoryRepo()
	svc := NewCategoryService(repo)
	admin := &domain.User{ID: "admin-1", CampusID: testCampusID, Role: domain.RoleAdmin, Active: true}

	partial := fullSLAConfig()
	delete(partial, domain.IssuePriorityCritical)

	_, err := svc.Create(context.Background(), admin, CategoryCreateInput{
		Name:      "Plumbing",
		SLAConfig: partial,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	created, err := svc.Create(context.Background(), admin, CategoryCreateInput{
		Name:      "Plumbing",
		SLAConfig: fullSLAConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, testCampusID, created.CampusID)
}

func TestCreateCategoryRejectsNonPositiveTargets(t *testing.T) {
	svc := NewCategoryService(newMemCategoryRepo())
	admin := &domain.User{ID: "admin-1", CampusID: testCampusID, Role: domain.RoleAdmin, Active: true}

	bad := fullSLAConfig()
	bad[domain.IssuePriorityHigh] = domain.SLATarget{ResponseMinutes: 0, ResolutionHours: 24}

	_, err := svc.Create(context.Background(), admin, CategoryCreateInput{Name: "HVAC", SLAConfig: bad})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestGetCategoryScopedToCampus(t *testing.T) {
	repo := newMemCategoryRepo()
	repo.put(&domain.Category{ID: "cat-other", CampusID: "campus-2", Name: "Other", SLAConfig: fullSLAConfig()})
	svc := NewCategoryService(repo)
	staff := &domain.User{ID: "staff-1", CampusID: testCampusID, Role: domain.RoleStaff, Active: true}

	_, err := svc.Get(context.Background(), staff, "cat-other")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
