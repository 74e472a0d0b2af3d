package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facilities-service/internal/auth"
	"github.com/spec-kit/facilities-service/internal/service"
	apperrors "github.com/spec-kit/facilities-service/pkg/util"
)

// SLAHandler serves compliance stats and manual sweep triggers. The
// scheduler owns periodic runs; the trigger endpoints exist for operators
// because sweeps are idempotent and safe to run at any time.
type SLAHandler struct {
	sla *service.SLAService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(slaService *service.SLAService) *SLAHandler {
	return &SLAHandler{sla: slaService}
}

// Stats GET /sla/stats.
func (h *SLAHandler) Stats(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	stats, err := h.sla.Stats(c.Context(), principal.User.CampusID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// TriggerBreachSweep POST /sla/sweeps/breach (admin).
func (h *SLAHandler) TriggerBreachSweep(c *fiber.Ctx) error {
	result, err := h.sla.RunBreachSweep(c.Context(), time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// TriggerAutoCloseSweep POST /sla/sweeps/auto-close (admin).
func (h *SLAHandler) TriggerAutoCloseSweep(c *fiber.Ctx) error {
	result, err := h.sla.RunAutoCloseSweep(c.Context(), time.Now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
