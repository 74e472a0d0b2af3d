package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facilities-service/internal/api/dto"
	"github.com/spec-kit/facilities-service/internal/auth"
	"github.com/spec-kit/facilities-service/internal/repository"
	apperrors "github.com/spec-kit/facilities-service/pkg/util"
)

// AuditHandler exposes the campus audit trail to admins.
type AuditHandler struct {
	audit repository.AuditRepository
}

// NewAuditHandler constructs handler.
func NewAuditHandler(auditRepo repository.AuditRepository) *AuditHandler {
	return &AuditHandler{audit: auditRepo}
}

// ListAuditEntries GET /audit (admin).
func (h *AuditHandler) ListAuditEntries(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	limit, offset := parsePagination(c)
	entries, err := h.audit.ListByCampus(c.Context(), principal.User.CampusID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.AuditEntryResponse{
			ID:         entry.ID,
			UserID:     entry.UserID,
			Action:     entry.Action,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Changes:    entry.Changes,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
