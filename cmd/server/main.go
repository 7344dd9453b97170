// Package main - точка входа HTTP-сервиса экономики прогресса Lingua Hub.
//
// Сервис отвечает за:
// - Сердца: расход, регенерация, пополнение за гемы
// - Серии дней: продление, заморозки и щиты
// - Ежедневные задания и награды в гемах
// - Магазин усилителей и ставку "double or nothing"
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/lingua-hub/config"
	"github.com/alem-hub/lingua-hub/internal/application/command"
	"github.com/alem-hub/lingua-hub/internal/application/eventhandler"
	"github.com/alem-hub/lingua-hub/internal/application/query"
	"github.com/alem-hub/lingua-hub/internal/application/workflow"
	"github.com/alem-hub/lingua-hub/internal/domain/economy"
	"github.com/alem-hub/lingua-hub/internal/infrastructure/messaging"
	"github.com/alem-hub/lingua-hub/internal/infrastructure/monitoring"
	"github.com/alem-hub/lingua-hub/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/lingua-hub/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/lingua-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/alem-hub/lingua-hub/internal/interface/http"
	"github.com/alem-hub/lingua-hub/pkg/logger"
	"github.com/alem-hub/lingua-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// .env необязателен: в контейнере переменные приходят из окружения.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.NewFromConfig(cfg.Observability.LogLevel, cfg.Observability.LogFormat).
		With(logger.String("service", cfg.App.Name))
	log.Info("starting Lingua Hub economy service",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Location.String()),
		logger.String("storage", cfg.Economy.Storage),
		logger.Any("features", cfg.Features.Summary()),
	)

	metrics := monitoring.NewMetrics()
	health := httpapi.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL или память)
	// ─────────────────────────────────────────────────────────────────────────
	repo, closeRepo, err := setupRepository(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeRepo()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. БЛОКИРОВКИ ПОЛЬЗОВАТЕЛЕЙ (Redis или процесс)
	// ─────────────────────────────────────────────────────────────────────────
	locker, closeLocker, err := setupLocker(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeLocker()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS И ОБРАБОТЧИКИ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log.With(logger.Component("eventbus"))
	busConfig.Metrics = metrics
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	if err := eventhandler.NewEconomyEventsHandler(metrics, log.With(logger.Component("economy_events"))).Register(eventBus); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПРИЛОЖЕНИЕ (команды и запросы)
	// ─────────────────────────────────────────────────────────────────────────
	runner := workflow.NewRunner(repo, locker, timeutil.NewSystemClock(cfg.App.Location), eventBus,
		workflow.Config{
			Economy: economy.Config{
				RegenInterval: cfg.Economy.HeartRegenInterval,
				StartingGems:  cfg.Economy.StartingGems,
				MaxHearts:     cfg.Economy.MaxHearts,
			},
			ConflictAttempts: cfg.Economy.ConflictAttempts,
		},
		workflow.WithFeatureGate(cfg.Features),
		workflow.WithObserver(metrics),
		workflow.WithLogger(log.With(logger.Component("workflow"))),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpapi.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.AllowedOrigins = cfg.HTTP.CORSOrigins
	httpConfig.EnableMetrics = cfg.Observability.MetricsEnabled
	httpConfig.RateLimit = cfg.HTTP.RateLimit
	httpConfig.RateBurst = cfg.HTTP.RateBurst
	httpConfig.APIKeyHashes = cfg.HTTP.APIKeyHashes
	httpConfig.TrustedProxies = cfg.HTTP.TrustedProxies
	httpConfig.Version = cfg.App.Version

	server, err := httpapi.NewServer(httpConfig, httpapi.Dependencies{
		ProvisionEconomy:   command.NewProvisionEconomyHandler(runner),
		SpendHearts:        command.NewSpendHeartsHandler(runner),
		RefillHearts:       command.NewRefillHeartsHandler(runner),
		PurchasePowerUp:    command.NewPurchasePowerUpHandler(runner),
		RecordLesson:       command.NewRecordLessonHandler(runner),
		GetEconomySnapshot: query.NewGetEconomySnapshotHandler(runner),
		GetDailyQuests:     query.NewGetDailyQuestsHandler(runner),
		GetCatalog:         query.NewGetCatalogHandler(),
		Logger:             log.With(logger.Component("http")),
		HealthChecker:      health,
		Metrics:            metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if len(cfg.HTTP.APIKeyHashes) == 0 {
		log.Warn("API key check is disabled, /api routes are open")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

// setupRepository opens the configured storage and registers its health check.
func setupRepository(ctx context.Context, cfg *config.Config, log *logger.Logger, health *httpapi.CompositeHealthChecker) (economy.Repository, func(), error) {
	if cfg.Economy.Storage == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		repo := memory.NewEconomyRepository()
		health.AddCheck("storage", httpapi.PingCheck(repo))
		return repo, func() {}, nil
	}

	log.Info("connecting to database...")
	pgConfig := postgres.DefaultConfig()
	pgConfig.URL = cfg.Database.URL
	pgConfig.MaxConns = int32(cfg.Database.MaxConns)
	pgConfig.MinConns = int32(cfg.Database.MinConns)
	pgConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	conn, err := postgres.NewConnection(ctx, pgConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	health.AddCheck("postgres", httpapi.PingCheck(conn))

	return postgres.NewEconomyRepository(conn), func() {
		log.Info("closing database connection...")
		conn.Close()
	}, nil
}

// setupLocker picks Redis locks for multi-instance deployments, process
// locks otherwise.
func setupLocker(ctx context.Context, cfg *config.Config, log *logger.Logger, health *httpapi.CompositeHealthChecker) (economy.Locker, func(), error) {
	if cfg.Redis.Disabled {
		log.Info("redis disabled, using process-local user locks")
		return memory.NewKeyedLocker(), func() {}, nil
	}

	log.Info("connecting to Redis...")
	redisConfig := redis.DefaultConfig()
	redisConfig.Addr = cfg.Redis.Addr
	redisConfig.Password = cfg.Redis.Password
	redisConfig.DB = cfg.Redis.DB
	redisConfig.PoolSize = cfg.Redis.PoolSize
	redisConfig.MinIdleConns = cfg.Redis.MinIdleConns
	redisConfig.DialTimeout = cfg.Redis.DialTimeout
	redisConfig.ReadTimeout = cfg.Redis.ReadTimeout
	redisConfig.WriteTimeout = cfg.Redis.WriteTimeout
	redisConfig.KeyPrefix = cfg.Redis.KeyPrefix

	cache, err := redis.NewCache(ctx, redisConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("Redis connection established")

	health.AddCheck("redis", httpapi.PingCheck(cache))

	locker := redis.NewUserLocker(cache, redis.UserLockerConfig{
		TTL:         cfg.Redis.LockTTL,
		WaitTimeout: cfg.Redis.LockWait,
	}, log.With(logger.Component("user_lock")))

	return locker, func() {
		log.Info("closing Redis connection...")
		_ = cache.Close()
	}, nil
}

// Compile-time wiring checks.
var (
	_ economy.Repository = (*postgres.EconomyRepository)(nil)
	_ economy.Locker     = (*redis.UserLocker)(nil)
)
