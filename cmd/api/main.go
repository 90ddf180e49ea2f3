// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/bookshelf/internal/access"
	"github.com/carterperez-dev/bookshelf/internal/admin"
	"github.com/carterperez-dev/bookshelf/internal/auth"
	"github.com/carterperez-dev/bookshelf/internal/book"
	"github.com/carterperez-dev/bookshelf/internal/category"
	"github.com/carterperez-dev/bookshelf/internal/config"
	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/health"
	"github.com/carterperez-dev/bookshelf/internal/library"
	"github.com/carterperez-dev/bookshelf/internal/middleware"
	"github.com/carterperez-dev/bookshelf/internal/progress"
	"github.com/carterperez-dev/bookshelf/internal/server"
	"github.com/carterperez-dev/bookshelf/internal/session"
	"github.com/carterperez-dev/bookshelf/internal/storage"
	"github.com/carterperez-dev/bookshelf/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	if cfg.Database.AutoMigrate {
		if err := migrateUp(cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("object storage connected",
		"driver", cfg.Storage.Driver,
		"books_bucket", cfg.Storage.BooksBucket,
		"covers_bucket", cfg.Storage.CoversBucket,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.KeyID(),
	)

	events := auth.NewEventBus(cfg.Session.EventBuffer)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(authRepo, jwtManager, userSvc, redis, events)
	authHandler := auth.NewHandler(authSvc)

	coordinator := session.NewCoordinator(events, userSvc, logger).
		WithPurge(authSvc, cfg.Session.PurgeInterval)
	coordinatorDone := make(chan struct{})
	go func() {
		defer close(coordinatorDone)
		// Stopped by closing the bus once the server has drained.
		coordinator.Run(context.WithoutCancel(ctx))
	}()

	categorySvc := category.NewService(category.NewRepository(db.DB))
	categoryHandler := category.NewHandler(categorySvc)

	accessSvc := access.NewService(access.NewRepository(db.DB))
	accessHandler := access.NewHandler(accessSvc)

	bookSvc := book.NewService(
		db.DB,
		store,
		storage.BucketsFromConfig(cfg.Storage),
		accessSvc,
		book.Limits{
			MaxBookSize:  cfg.Upload.MaxBookSize,
			MaxCoverSize: cfg.Upload.MaxCoverSize,
		},
		logger,
	)
	bookHandler := book.NewHandler(bookSvc)

	progressSvc := progress.NewService(progress.NewRepository(db.DB), accessSvc)
	progressHandler := progress.NewHandler(progressSvc)

	librarySvc := library.NewService(
		userSvc,
		accessSvc,
		progressSvc,
		categorySvc,
		bookSvc,
		logger,
	)
	libraryHandler := library.NewHandler(librarySvc)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
		health.Dependency{Name: "storage", Checker: store},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:       db.Stats,
		RedisStats:    redis.PoolStats,
		DBPing:        db.Ping,
		RedisPing:     redis.Ping,
		StoragePing:   store.Ping,
		SessionStats:  coordinator.Stats,
		EventsDropped: events.Dropped,
		Books:         bookSvc,
		Grants:        accessSvc,
		Sessions:      authSvc,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	router.Use(middleware.RealIP(proxies))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.Per(
				cfg.RateLimit.Window,
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.JWKSHandler())

	authenticator := middleware.Authenticator(jwtManager, authSvc)
	adminOnly := middleware.RequireAdmin
	progressLimiter := middleware.RoleRateLimiter(redis.Client, progressLimits(cfg.RateLimit))

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		r.Post("/users", authHandler.Register)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		categoryHandler.RegisterRoutes(r)

		bookHandler.RegisterRoutes(r, authenticator)
		bookHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		accessHandler.RegisterRoutes(r, authenticator)
		accessHandler.RegisterAdminRoutes(r, authenticator, adminOnly)

		progressHandler.RegisterRoutes(r, authenticator, progressLimiter)
		libraryHandler.RegisterRoutes(r, authenticator)

		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	events.Close()
	select {
	case <-coordinatorDone:
	case <-shutdownCtx.Done():
		logger.Warn("session coordinator did not stop in time")
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	migrator, err := core.NewMigrator(databaseURL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("close migrator", "error", err)
		}
	}()

	return migrator.Up()
}

// progressLimits gives admins a larger page-save budget than readers.
func progressLimits(cfg config.RateLimitConfig) middleware.RoleLimits {
	multiplier := cfg.AdminMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	return middleware.RoleLimits{
		core.RoleUser: middleware.PerMinute(cfg.ProgressPerMin, cfg.ProgressBurst),
		core.RoleAdmin: middleware.PerMinute(
			cfg.ProgressPerMin*multiplier,
			cfg.ProgressBurst*multiplier,
		),
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
