package dto

import (
	"time"

	"github.com/spec-kit/facilities-service/internal/domain"
)

// AuditEntryResponse represents one audit trail record.
type AuditEntryResponse struct {
	ID         string             `json:"id"`
	UserID     *string            `json:"user_id,omitempty"`
	Action     domain.AuditAction `json:"action"`
	EntityType string             `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	Changes    map[string]any     `json:"changes"`
	CreatedAt  time.Time          `json:"created_at"`
}
