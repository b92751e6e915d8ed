package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lotes/backend/internal/application/acquisition"
	identityapp "github.com/lotes/backend/internal/application/identity"
	"github.com/lotes/backend/internal/application/media"
	"github.com/lotes/backend/internal/infrastructure/auth"
	"github.com/lotes/backend/internal/infrastructure/cache"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/lotes/backend/internal/infrastructure/docstore"
	"github.com/lotes/backend/internal/infrastructure/logger"
	"github.com/lotes/backend/internal/infrastructure/migration"
	"github.com/lotes/backend/internal/infrastructure/persistence"
	"github.com/lotes/backend/internal/infrastructure/storage"
	"github.com/lotes/backend/internal/infrastructure/telemetry"
	"github.com/lotes/backend/internal/interfaces/http/handler"
	"github.com/lotes/backend/internal/interfaces/http/middleware"
	"github.com/lotes/backend/internal/interfaces/http/router"
	"github.com/lotes/backend/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const meterName = "github.com/lotes/backend"

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
	}

	// Telemetry starts with a bootstrap logger; the final logger tees into
	// the OTLP log exporter once it exists.
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	tel, err := telemetry.Setup(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log, err := logger.New(logCfg, tel.LogCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting lote backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("directory_backend", cfg.Directory.Backend),
	)

	// Database, only needed by the sql directory backend
	var db *persistence.Database
	if cfg.Directory.Backend == "sql" {
		db = openDatabase(ctx, cfg, log)
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
	}

	// Redis, shared by the redis directory backend and the token blacklist
	var rdb *redis.Client
	if cfg.Directory.Backend == "redis" || cfg.JWT.BlacklistBackend == "redis" {
		rdb, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = rdb.Close()
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	var gormDB *gorm.DB
	if db != nil {
		gormDB = db.DB
	}
	store, err := docstore.New(cfg.Directory, gormDB, rdb)
	if err != nil {
		log.Fatal("Failed to create directory store", zap.Error(err))
	}
	defer store.Close()

	// Repositories
	actorRepo := persistence.NewActorRepository(store)
	accountRepo := persistence.NewAccountRepository(store)
	loteRepo := persistence.NewLoteRepository(store)

	// Authentication
	blacklist, closeBlacklist, err := cache.NewBlacklistFactory(cfg.Redis, cache.WithLogger(log)).
		Create(ctx, cfg.JWT.BlacklistBackend, rdb)
	if err != nil {
		log.Fatal("Failed to create token blacklist", zap.Error(err))
	}
	defer func() {
		_ = closeBlacklist()
	}()
	jwtService := auth.NewJWTService(cfg.JWT)
	verifier := auth.NewVerifier(jwtService, blacklist, log)

	// Metrics
	var meter metric.Meter
	if tel.Meter.IsEnabled() {
		meter = tel.Meter.Meter(meterName)
	}
	var acqMetrics *acquisition.Metrics
	if meter != nil {
		acqMetrics, err = acquisition.NewMetrics(meter)
		if err != nil {
			log.Fatal("Failed to register acquisition metrics", zap.Error(err))
		}
	}

	// Application services
	settlements := acquisition.NewSettlementQueue(actorRepo, acquisition.SettlementQueueConfig{
		Workers:    cfg.Acquisition.SettlementWorkers,
		QueueSize:  cfg.Acquisition.SettlementQueue,
		MaxRetries: cfg.Acquisition.SettlementRetries,
		Timeout:    cfg.Acquisition.SettlementTimeout,
	}, acqMetrics, log)
	settlements.Start(ctx)

	acquisitionService := acquisition.NewService(verifier, actorRepo, loteRepo, settlements,
		acquisition.ServiceConfig{StepTimeout: cfg.Acquisition.StepTimeout}, acqMetrics, log)
	catalogueService := acquisition.NewCatalogueService(loteRepo, log)
	userService := identityapp.NewUserService(actorRepo, accountRepo, verifier,
		identityapp.UserServiceConfig{InitialTokens: cfg.Identity.InitialTokens}, log)
	authService := identityapp.NewAuthService(actorRepo, accountRepo, jwtService, log)

	objects, err := storage.New(ctx, &cfg.Storage, storage.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	if closer, ok := objects.(io.Closer); ok {
		defer closer.Close()
	}
	thumbnailService := media.NewThumbnailService(objects, media.ThumbnailConfig{
		Widths:      cfg.Thumbnail.Widths,
		JPEGQuality: cfg.Thumbnail.JPEGQuality,
		Timeout:     cfg.Thumbnail.Timeout,
	}, log)

	if admin, err := userService.BootstrapAdmin(ctx, cfg.Identity.BootstrapAdminEmail, cfg.Identity.BootstrapAdminPassword); err != nil {
		log.Fatal("Failed to bootstrap admin", zap.Error(err))
	} else if admin != nil {
		log.Info("Admin account ready", zap.String("actor_id", admin.ID))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	var limiter *middleware.RateLimiter
	limiterCtx, stopLimiter := context.WithCancel(ctx)
	defer stopLimiter()
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go limiter.Run(limiterCtx)
	}

	engine, err := router.NewEngine(router.Dependencies{
		Handlers: router.Handlers{
			Lotes:      handler.NewLoteHandler(acquisitionService, catalogueService),
			Users:      handler.NewUserHandler(userService),
			Auth:       handler.NewAuthHandler(authService),
			Thumbnails: handler.NewThumbnailHandler(thumbnailService),
			Health:     handler.NewHealthHandler(store),
		},
		Verifier:    verifier,
		Logger:      log,
		HTTP:        cfg.HTTP,
		ServiceName: cfg.Telemetry.ServiceName,
		Meter:       meter,
		RateLimiter: limiter,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	drainCtx, cancelDrain := context.WithTimeout(shutdownCtx, cfg.Acquisition.SettlementDrainMax)
	defer cancelDrain()
	if err := settlements.Stop(drainCtx); err != nil {
		log.Error("Settlements still pending at shutdown", zap.Error(err))
	}

	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// openDatabase connects to the configured database and makes sure the
// directory table exists.
func openDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) *persistence.Database {
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:  logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond),
		Tracing: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		FullSQL: cfg.Telemetry.DBLogFullSQL,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	switch {
	case cfg.Database.Driver == "sqlite":
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create directory table", zap.Error(err))
		}
	case cfg.Database.AutoMigrate:
		if err := applyMigrations(db, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}
	if err := db.Ping(ctx); err != nil {
		log.Fatal("Database not reachable", zap.Error(err))
	}
	return db
}

func applyMigrations(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	// Closing the migrator would close sqlDB, which the store still uses.
	return m.Up()
}
