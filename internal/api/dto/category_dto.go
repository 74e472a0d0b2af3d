package dto

import (
	"time"

	"github.com/spec-kit/facilities-service/internal/domain"
)

// CategoryResponse exposes a category with its SLA table.
type CategoryResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	SLAConfig   domain.SLAConfig `json:"sla_config"`
	CreatedAt   time.Time        `json:"created_at"`
}
