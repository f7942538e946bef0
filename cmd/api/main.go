package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kursadbilgin/credit-engine/internal/allocation"
	"github.com/kursadbilgin/credit-engine/internal/client"
	"github.com/kursadbilgin/credit-engine/internal/config"
	"github.com/kursadbilgin/credit-engine/internal/guard"
	"github.com/kursadbilgin/credit-engine/internal/handler"
	"github.com/kursadbilgin/credit-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/credit-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/credit-engine/internal/infra/redis"
	"github.com/kursadbilgin/credit-engine/internal/observability"
	"github.com/kursadbilgin/credit-engine/internal/queue"
	"github.com/kursadbilgin/credit-engine/internal/repository"
	"github.com/kursadbilgin/credit-engine/internal/roster"
	"github.com/kursadbilgin/credit-engine/internal/service"
	"github.com/kursadbilgin/credit-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("credit-engine api stopped with error", zap.Error(err))
	}
	logger.Info("credit-engine api stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN, postgresql.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	metrics := observability.NewMetrics()

	enterprise, err := client.NewEnterpriseClient(cfg.EnterpriseAPIURL, cfg.EnterpriseAPITimeout())
	if err != nil {
		return fmt.Errorf("enterprise client initialization failed: %w", err)
	}
	breakerSettings := client.DefaultBreakerSettings()
	breakerSettings.ConsecutiveFailures = uint32(cfg.BreakerMaxFailures)
	breakerSettings.OpenTimeout = cfg.BreakerOpenTimeout()
	api := client.NewBreakerClient(enterprise, breakerSettings, logger)

	budgetCache, err := infraredis.NewBudgetCache(rdb, cfg.BudgetCacheTTL())
	if err != nil {
		return err
	}
	limiter, err := infraredis.NewSubmissionRateLimiter(rdb, cfg.AllocationRateLimit, cfg.AllocationRateLimitWindow())
	if err != nil {
		return err
	}
	lock, err := infraredis.NewSubmissionLock(rdb, cfg.SubmissionLockTTL(), logger)
	if err != nil {
		return err
	}

	attempts := repository.NewGormAttemptRepo(db)
	budgets := service.NewBudgetService(api, budgetCache, attempts, logger)
	budgets.SetMetrics(metrics)

	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.EventConsumerPrefetch, logger)

	orchestrator, err := allocation.NewOrchestrator(
		api,
		budgets,
		budgets,
		allocation.NewLogNotifier(logger),
		guard.New(limiter, lock),
		attempts,
		publisher,
		roster.NewValidator(cfg.DuplicatePolicy(), cfg.RosterMaxEmails),
		allocation.Options{
			DebounceWindow: cfg.RosterDebounce(),
			DisplayLimit:   cfg.RosterDisplayLimit,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("orchestrator initialization failed: %w", err)
	}
	orchestrator.SetMetrics(metrics)

	worker, err := service.NewInvalidationWorker(consumer, budgets, cfg.EventConsumerConcurrency, logger)
	if err != nil {
		return fmt.Errorf("invalidation worker initialization failed: %w", err)
	}
	worker.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:               "credit-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(observability.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app,
		handler.PostgresCheck(sqlDB),
		handler.RedisCheck(rdb),
		handler.ReadinessCheck{Name: "rabbitmq", Check: rabbit.Ping},
	)
	if err := handler.RegisterBudgetRoutes(app, budgets); err != nil {
		return err
	}
	if err := handler.RegisterSessionRoutes(app, orchestrator); err != nil {
		return err
	}
	handler.RegisterClassifyRoutes(app)

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("credit-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return worker.Start(groupCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if pruned := orchestrator.Prune(cfg.SessionIdleTTL()); pruned > 0 {
					logger.Debug("pruned idle assignment sessions", zap.Int("count", pruned))
				}
			}
		}
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down http server")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
