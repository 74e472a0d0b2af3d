package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facilities-service/internal/api/http/handlers"
	"github.com/spec-kit/facilities-service/internal/auth"
	"github.com/spec-kit/facilities-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Issues         *handlers.IssuesHandler
	Categories     *handlers.CategoriesHandler
	SLA            *handlers.SLAHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	issues := protected.Group("/issues")
	issues.Post("", cfg.Issues.CreateIssue)
	issues.Get("", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.Issues.ListIssues)
	issues.Get("/my-created", cfg.Issues.MyCreatedIssues)
	issues.Get("/my-assigned", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.Issues.MyAssignedIssues)
	issues.Get("/:id", cfg.Issues.GetIssue)
	issues.Patch("/:id/status", cfg.Issues.UpdateStatus)
	issues.Patch("/:id/assign", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.Issues.AssignIssue)
	issues.Delete("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Issues.DeleteIssue)

	categories := protected.Group("/categories")
	categories.Get("", cfg.Categories.ListCategories)
	categories.Get("/:id", cfg.Categories.GetCategory)
	categories.Post("", auth.RequireRole(domain.RoleAdmin), cfg.Categories.CreateCategory)

	sla := protected.Group("/sla")
	sla.Get("/stats", auth.RequireRole(domain.RoleStaff, domain.RoleAdmin), cfg.SLA.Stats)
	sla.Post("/sweeps/breach", auth.RequireRole(domain.RoleAdmin), cfg.SLA.TriggerBreachSweep)
	sla.Post("/sweeps/auto-close", auth.RequireRole(domain.RoleAdmin), cfg.SLA.TriggerAutoCloseSweep)

	protected.Get("/audit", auth.RequireRole(domain.RoleAdmin), cfg.Audit.ListAuditEntries)
}
