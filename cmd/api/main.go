package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/checkin-service/internal/api/http"
	"github.com/spec-kit/checkin-service/internal/api/http/handlers"
	"github.com/spec-kit/checkin-service/internal/auth"
	"github.com/spec-kit/checkin-service/internal/config"
	"github.com/spec-kit/checkin-service/internal/domain"
	"github.com/spec-kit/checkin-service/internal/events"
	"github.com/spec-kit/checkin-service/internal/observability"
	"github.com/spec-kit/checkin-service/internal/persistence"
	"github.com/spec-kit/checkin-service/internal/queue"
	"github.com/spec-kit/checkin-service/internal/repository"
	"github.com/spec-kit/checkin-service/internal/repository/memory"
	"github.com/spec-kit/checkin-service/internal/service"
	"github.com/spec-kit/checkin-service/internal/worker"
	"github.com/spec-kit/checkin-service/pkg/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	policy, err := service.NewAttendancePolicy(cfg.Attendance)
	if err != nil {
		logger.Fatal("invalid attendance policy", zap.Error(err))
	}

	deps := map[string]handlers.Pinger{}
	store, closeStore := openStore(ctx, cfg, logger, deps)
	defer closeStore()

	var rdb *persistence.Redis
	if cfg.Session.Backend == "redis" || cfg.Notification.QueueBackend == "redis" {
		rdb = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer rdb.Close()
		deps["redis"] = rdb
	}

	var sessionRepo repository.SessionRepository
	if cfg.Session.Backend == "redis" {
		sessionRepo = repository.NewRedisSessionRepository(rdb.Client)
	} else {
		logger.Warn("using in-memory session registry; sessions are lost on restart")
		sessionRepo = memory.NewSessionRepository()
	}

	var notifications queue.Queue
	if cfg.Notification.QueueBackend == "redis" {
		notifications = queue.NewRedisQueue(rdb.Client, cfg.Notification.QueueKey)
	} else {
		notifications = queue.NewInMemory(cfg.Notification.QueueSize)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)

	sessionService := service.NewSessionService(service.SessionDependencies{
		Repo:        sessionRepo,
		Dispatcher:  dispatcher,
		ServiceName: cfg.App.Name,
		Timeout:     cfg.Session.Timeout(),
		Logger:      logger,
	})
	tokenService := service.NewTokenService(service.TokenDependencies{
		Store:  store,
		TTL:    cfg.Kiosk.TokenTTL,
		Logger: logger,
	})
	checkinService := service.NewCheckinService(service.CheckinDependencies{
		Store:       store,
		Dispatcher:  dispatcher,
		Sessions:    sessionService,
		Metrics:     metrics,
		Logger:      logger,
		Policy:      policy,
		ScanTimeout: cfg.Kiosk.ScanTimeout,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Queue:      notifications,
		Metrics:    metrics,
		Logger:     logger,
	})
	notificationService.RegisterHandlers()

	tokenMgr := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(service.AuthDependencies{
		Employees:    store.Employees(),
		Sessions:     sessionService,
		TokenManager: tokenMgr,
	})
	authMiddleware := auth.NewAuthMiddleware(tokenMgr, store.Employees(), sessionService)

	var transport worker.Transport
	if cfg.Notification.WebhookURL != "" {
		transport = worker.NewHTTPTransport(cfg.Notification.WebhookURL, cfg.Notification.DeliveryTimeout)
	} else {
		logger.Info("NOTIFY_WEBHOOK_URL not set; notifications are only logged")
		transport = worker.NewLogTransport(logger)
	}
	notificationWorker := worker.NewNotificationWorker(worker.NotificationWorkerConfig{
		Queue:       notifications,
		Transport:   transport,
		Logger:      logger,
		Metrics:     metrics,
		MaxAttempts: cfg.Notification.MaxAttempts,
		Backoff:     cfg.Notification.Backoff,
		Timeout:     cfg.Notification.DeliveryTimeout,
	})
	janitor := worker.NewJanitor(worker.JanitorConfig{
		Sessions:       sessionService,
		Tokens:         tokenService,
		Interval:       cfg.Session.SweepInterval,
		TokenRetention: cfg.Session.TokenRetention,
		Logger:         logger,
		Metrics:        metrics,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := notificationWorker.Run(ctx); err != nil {
			logger.Error("notification worker exited", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		janitor.Run(ctx)
	}()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:          cfg.App.RequestTimeout(),
		CORSAllowOrigins: cfg.App.CORSAllowOrigins,
	})

	v := validator.New()
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:           handlers.NewAuthHandler(authService, v),
		Kiosk:          handlers.NewKioskHandler(tokenService, checkinService, v),
		Attendance:     handlers.NewAttendanceHandler(checkinService, v),
		Visitors:       handlers.NewVisitorHandler(checkinService, v),
		Sessions:       handlers.NewSessionHandler(sessionService, v),
		AuthMiddleware: authMiddleware,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		RateLimit:      cfg.RateLimit,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	wg.Wait()
}

// openStore picks the record store and registers it for readiness checks.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps map[string]handlers.Pinger) (repository.Store, func()) {
	if cfg.Store.Backend == "memory" {
		logger.Warn("using in-memory record store; data is lost on restart")
		store := memory.NewStore()
		seedAdmin(store, cfg.Bootstrap, cfg.Auth.BcryptCost, logger)
		return store, func() {}
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	deps["postgres"] = pg
	return repository.NewPostgresStore(pg.Pool), pg.Close
}

func seedAdmin(store *memory.Store, cfg config.BootstrapConfig, cost int, logger *zap.Logger) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		logger.Warn("BOOTSTRAP_ADMIN_EMAIL/BOOTSTRAP_ADMIN_PASSWORD not set; in-memory store has no employees")
		return
	}
	hash, err := auth.HashPassword(cfg.AdminPassword, cost)
	if err != nil {
		logger.Fatal("hash bootstrap password", zap.Error(err))
	}
	store.SeedEmployee(domain.Employee{
		ID:           uuid.NewString(),
		Name:         "Administrator",
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
	})
	logger.Info("seeded bootstrap administrator", zap.String("email", cfg.AdminEmail))
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
