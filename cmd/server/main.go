package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"

	"github.com/inflnara/inflnara-api/internal/auth"
	"github.com/inflnara/inflnara-api/internal/config"
	"github.com/inflnara/inflnara-api/internal/database"
	"github.com/inflnara/inflnara-api/internal/handlers"
	"github.com/inflnara/inflnara-api/internal/logging"
	"github.com/inflnara/inflnara-api/internal/metrics"
	"github.com/inflnara/inflnara-api/internal/middleware"
	"github.com/inflnara/inflnara-api/internal/repository"
	"github.com/inflnara/inflnara-api/internal/routes"
	"github.com/inflnara/inflnara-api/internal/services"
	"github.com/inflnara/inflnara-api/internal/throttle"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	stdout := logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	// Stores
	var (
		db       *gorm.DB
		users    repository.UserRepository
		sessions repository.SessionRepository
		tx       repository.Transactor
		pgLog    *logging.PGHandler
	)
	cleanupDone := make(chan struct{})

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		memUsers := repository.NewMemoryUserRepository()
		memSessions := repository.NewMemorySessionRepository()
		users, sessions = memUsers, memSessions
		tx = repository.NewMemoryTransactor(memUsers, memSessions)
	case config.StoreDriverPostgres:
		if cfg.DBPassword == "" {
			slog.Error("DB_PASSWORD environment variable is required")
			os.Exit(1)
		}
		var err error
		db, err = database.Connect(cfg)
		if err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		if err := database.Migrate(db); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}

		// PostgreSQL log handler (ERROR+ async batch)
		pgLog = logging.NewPGHandler(db)
		slog.SetDefault(slog.New(logging.NewMultiHandler(stdout, pgLog)))

		// Log cleanup (30-day retention)
		logging.StartCleanup(db, cleanupDone)

		users = repository.NewGormUserRepository(db)
		sessions = repository.NewGormSessionRepository(db)
		tx = repository.NewGormTransactor(db)
	default:
		slog.Error("unknown STORE_DRIVER", "driver", cfg.StoreDriver)
		os.Exit(1)
	}

	// Token authority and session ledger
	tokens, err := auth.NewAuthority([]byte(cfg.JWTSecret), cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	if err != nil {
		slog.Error("token authority setup failed", "error", err)
		os.Exit(1)
	}
	ledger := services.NewSessionLedger(sessions, time.Now)

	// Metrics
	registry := metrics.NewRegistry()
	opts := []services.AuthOption{services.WithMetrics(metrics.New(registry))}

	// Optional failed-login throttle
	var redisClient *redis.Client
	if cfg.ThrottleEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = throttle.NewRedisClient(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		opts = append(opts, services.WithThrottle(throttle.NewRedisThrottle(redisClient, cfg.LoginMaxFailures, cfg.LoginFailureWindow)))
		slog.Info("login throttle enabled", "max_failures", cfg.LoginMaxFailures, "window", cfg.LoginFailureWindow.String())
	}

	// Services
	authService, err := services.NewAuthService(users, ledger, tx, tokens, cfg, opts...)
	if err != nil {
		slog.Error("auth service setup failed", "error", err)
		os.Exit(1)
	}
	userService := services.NewUserService(users)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    64 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	routes.Setup(app, cfg, routes.Handlers{
		Auth:    handlers.NewAuthHandler(authService),
		Users:   handlers.NewUserHandler(userService),
		Health:  handlers.NewHealthHandler(db),
		Metrics: metrics.Handler(registry),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver, "refresh_rotation", cfg.RefreshRotation)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	if pgLog != nil {
		pgLog.Stop()
	}
	sentry.Flush(2 * time.Second)

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if db != nil {
		if err := database.Close(db); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
