package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/facilities-service/internal/api/http"
	"github.com/spec-kit/facilities-service/internal/api/http/handlers"
	"github.com/spec-kit/facilities-service/internal/auth"
	"github.com/spec-kit/facilities-service/internal/config"
	"github.com/spec-kit/facilities-service/internal/events"
	"github.com/spec-kit/facilities-service/internal/observability"
	"github.com/spec-kit/facilities-service/internal/persistence"
	"github.com/spec-kit/facilities-service/internal/repository"
	"github.com/spec-kit/facilities-service/internal/scheduler"
	"github.com/spec-kit/facilities-service/internal/service"
	"github.com/spec-kit/facilities-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	campusRepo := repository.NewCampusRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	issueRepo := repository.NewIssueRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		CampusRepo: campusRepo,
	})
	categoryService := service.NewCategoryService(categoryRepo)
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:      issueRepo,
		CategoryRepo:   categoryRepo,
		AssignmentRepo: assignmentRepo,
		AuditRepo:      auditRepo,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		IssueRepo:      issueRepo,
		UserRepo:       userRepo,
		AssignmentRepo: assignmentRepo,
		Dispatcher:     dispatcher,
	})
	slaService := service.NewSLAService(cfg.SLA, service.SLADependencies{
		IssueRepo:  issueRepo,
		AuditRepo:  auditRepo,
		Cache:      redis.ClientHandle(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	slaScheduler := scheduler.New(slaService, logger, cfg.SLA)
	slaScheduler.Start()
	defer slaScheduler.Stop()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Issues:         handlers.NewIssuesHandler(issueService, assignmentService),
		Categories:     handlers.NewCategoriesHandler(categoryService),
		SLA:            handlers.NewSLAHandler(slaService),
		Audit:          handlers.NewAuditHandler(auditRepo),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
