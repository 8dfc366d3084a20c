// Package main provides the entry point for the IPTV reseller automation engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/handlers"
	"github.com/amirphl/iptv-reseller-automation/app/logger"
	"github.com/amirphl/iptv-reseller-automation/app/middleware"
	"github.com/amirphl/iptv-reseller-automation/app/router"
	"github.com/amirphl/iptv-reseller-automation/app/scheduler"
	"github.com/amirphl/iptv-reseller-automation/app/services"
	businessflow "github.com/amirphl/iptv-reseller-automation/business_flow"
	"github.com/amirphl/iptv-reseller-automation/config"
	"github.com/amirphl/iptv-reseller-automation/migrations"
	"github.com/amirphl/iptv-reseller-automation/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const serviceName = "iptv-reseller-automation"

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	logger    *zap.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := config.ValidateProductionConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrations(cfg, lg); err != nil {
			lg.Fatal("migration failed", zap.Error(err))
		}
		return
	}

	lg.Info("starting", zap.String("service", serviceName), zap.String("version", version))

	app, err := initializeApplication(cfg, lg)
	if err != nil {
		lg.Fatal("failed to initialize application", zap.Error(err))
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		lg.Info("server starting", zap.String("address", address))
		if err := app.router.Start(address); err != nil {
			lg.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-sigChan
	lg.Info("shutting down gracefully")

	// Scheduler first so claimed entries settle before the pool closes
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error("error during shutdown", zap.Error(err))
	}

	lg.Info("server stopped")
}

func runMigrations(cfg *config.ProductionConfig, lg *zap.Logger) error {
	db, err := initializeDatabase(cfg.Database, lg)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	applied, err := migrations.Apply(context.Background(), sqlDB, lg)
	if err != nil {
		return err
	}
	lg.Info("migrations complete", zap.Int("applied", len(applied)))
	return nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, lg *zap.Logger) (*gorm.DB, error) {
	gormLog := gormlogger.New(zap.NewStdLog(lg.Named("gorm")), gormlogger.Config{
		SlowThreshold:             cfg.SlowQueryTime,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	lg.Info("database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, lg *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	lg.Info("redis connection established", zap.Int("db", opt.DB))
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis to surface connectivity issues.
// The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, lg *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					lg.Warn("redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeEvents(cfg config.EventsConfig, lg *zap.Logger) (services.EventSink, func(), error) {
	sinks := services.MultiEventSink{services.NewLogEventSink(lg)}
	if !cfg.KafkaEnabled {
		return sinks, func() {}, nil
	}

	producer, err := services.NewKafkaProducer(cfg.KafkaBrokers, cfg.ClientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	kafka := services.NewKafkaEventSink(producer, cfg.KafkaTopic, lg)
	sinks = append(sinks, kafka)
	lg.Info("kafka event sink enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))

	return sinks, func() {
		if err := kafka.Close(); err != nil {
			lg.Warn("failed to close kafka producer", zap.Error(err))
		}
	}, nil
}

func initializeTransport(cfg config.TransportConfig, lg *zap.Logger) services.ChatTransport {
	if cfg.Mock {
		lg.Warn("using mock chat transport; messages are not delivered")
		return services.NewMockChatTransport()
	}
	return services.NewHTTPChatTransport(cfg.BaseURL, cfg.APIKey, cfg.Timeout)
}

func initializeLeaderLock(cfg config.SchedulerConfig, rc *redis.Client, lg *zap.Logger) scheduler.LeaderLock {
	if cfg.LeaderLockEnabled && rc != nil {
		return scheduler.NewRedisLeaderLock(rc)
	}
	if cfg.LeaderLockEnabled {
		lg.Warn("leader lock requested but redis is unavailable; falling back to a process-local lock")
	}
	return scheduler.NewLocalLeaderLock()
}

// initializeApplication wires repositories, flows, the scheduler and the HTTP router
func initializeApplication(cfg *config.ProductionConfig, lg *zap.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, lg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, lg)
	if err != nil {
		// Redis only backs the leader lock; the engine keeps running without it
		lg.Warn("redis unavailable", zap.Error(err))
		rc = nil
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second, lg))
	}

	vault, err := services.NewCredentialVault(cfg.Vault.KeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential vault: %w", err)
	}

	events, closeEvents, err := initializeEvents(cfg.Events, lg)
	if err != nil {
		return nil, err
	}

	transport := initializeTransport(cfg.Transport, lg)
	registry := services.NewProviderRegistry(
		services.NewSigmaAdapter(cfg.Providers.SigmaBaseURL, cfg.Providers.Timeout),
	)

	tenantRepo := repository.NewTenantRepository(db)
	sessionRepo := repository.NewTransportSessionRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	clientRepo := repository.NewClientRepository(db)
	queueRepo := repository.NewQueueEntryRepository(db)
	sentLogRepo := repository.NewSentLogRepository(db)
	deliveryLogRepo := repository.NewDeliveryLogRepository(db)
	inventoryRepo := repository.NewInventoryUnitRepository(db)
	accountRepo := repository.NewProviderAccountRepository(db)

	renewalFlow := businessflow.NewRenewalFlow(
		clientRepo,
		sessionRepo,
		inventoryRepo,
		accountRepo,
		deliveryLogRepo,
		transport,
		registry,
		vault,
		events,
		lg,
		businessflow.RenewalFlowConfig{
			DeliveryRetries:  cfg.Inventory.DeliveryRetries,
			RetryDelay:       cfg.Inventory.RetryDelay,
			ReservationTTL:   cfg.Inventory.ReservationTTL,
			TransportTimeout: cfg.Transport.Timeout,
			ProviderTimeout:  cfg.Providers.Timeout,
		},
	)
	reportFlow := businessflow.NewDeliveryReportFlow(tenantRepo, queueRepo, deliveryLogRepo)
	inventoryFlow := businessflow.NewInventoryFlow(tenantRepo, inventoryRepo, cfg.Inventory.CodeLength, lg)

	if cfg.Scheduler.Enabled {
		stop, err := startScheduler(cfg, rc, lg, events, transport, repository.NewTransactor(db),
			reminderRepo, sessionRepo, clientRepo, tenantRepo, queueRepo, sentLogRepo, deliveryLogRepo, inventoryRepo)
		if err != nil {
			return nil, err
		}
		stopFuncs = append(stopFuncs, stop)
	} else {
		lg.Info("scheduler disabled")
	}
	stopFuncs = append(stopFuncs, closeEvents)

	tokenService, err := services.NewTokenService(cfg.Auth.TokenTTL, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	checks := map[string]handlers.Pinger{
		"database": sqlDB.PingContext,
		"redis":    nil,
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}

	appRouter := router.NewFiberRouter(
		cfg.Server,
		cfg.Metrics,
		router.Handlers{
			Renewal:   handlers.NewRenewalHandler(renewalFlow, lg),
			Report:    handlers.NewReportHandler(reportFlow, lg),
			Inventory: handlers.NewInventoryHandler(inventoryFlow, lg),
			Health:    handlers.NewHealthHandler(serviceName, version, checks),
		},
		middleware.NewAuthMiddleware(tokenService),
		lg,
	)

	return &Application{
		router:    appRouter,
		config:    cfg,
		logger:    lg,
		stopFuncs: stopFuncs,
	}, nil
}

func startScheduler(
	cfg *config.ProductionConfig,
	rc *redis.Client,
	lg *zap.Logger,
	events services.EventSink,
	transport services.ChatTransport,
	tx repository.Transactor,
	reminderRepo repository.ReminderRepository,
	sessionRepo repository.TransportSessionRepository,
	clientRepo repository.ClientRepository,
	tenantRepo repository.TenantRepository,
	queueRepo repository.QueueEntryRepository,
	sentLogRepo repository.SentLogRepository,
	deliveryLogRepo repository.DeliveryLogRepository,
	inventoryRepo repository.InventoryUnitRepository,
) (func(), error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	populator := scheduler.NewPopulator(reminderRepo, sessionRepo, clientRepo, queueRepo, sentLogRepo, events, lg,
		scheduler.PopulatorConfig{Location: loc, PaymentBaseURL: cfg.Payments.PaymentBaseURL})
	processor := scheduler.NewProcessor(queueRepo, tenantRepo, sentLogRepo, deliveryLogRepo, tx, transport,
		scheduler.NewRateThrottle(), events, lg,
		scheduler.ProcessorConfig{
			MaxRetries:        cfg.Scheduler.MaxRetries,
			RetryDelay:        cfg.Scheduler.RetryDelay,
			DefaultRateLimit:  cfg.Scheduler.DefaultRateLimit,
			TenantConcurrency: cfg.Scheduler.TenantConcurrency,
			SendTimeout:       cfg.Transport.Timeout,
		})
	sweeper := scheduler.NewSweeper(queueRepo, inventoryRepo, events, lg, cfg.Scheduler.Retention)

	runner := scheduler.NewRunner(loc, initializeLeaderLock(cfg.Scheduler, rc, lg), cfg.Scheduler.LeaderLockTTL, events, lg)
	if err := runner.AddQueueJobs(cfg.Scheduler, populator, processor, sweeper); err != nil {
		return nil, err
	}
	lg.Info("scheduler configured",
		zap.String("timezone", loc.String()),
		zap.String("populate", cfg.Scheduler.PopulateSpec),
		zap.String("process", cfg.Scheduler.ProcessSpec),
		zap.String("sweep", cfg.Scheduler.SweepSpec),
		zap.Int("default_rate_limit", cfg.Scheduler.DefaultRateLimit),
		zap.Int("max_retries", cfg.Scheduler.MaxRetries),
	)
	return runner.Start(context.Background()), nil
}
