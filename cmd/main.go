package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/config"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/database"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/guard"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/handler"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/handler/middleware"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/logging"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository/postgres"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/service"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/blacklist"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/email"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/hash"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/jwt"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/validator"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, SetDefault: true})
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingDBPassword) {
			logger.Error("DB_PASSWORD is not set; add it to .env or run `dbctl diagnose`")
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := database.OpenPool(ctx, cfg.Database.App(), database.DefaultPoolOptions(), database.Connect, logger)
	if err != nil {
		kind := database.ClassifyError(err)
		if hint := database.Remediation(kind, cfg.Database.App()); hint != "" {
			logger.Error("database unavailable", "kind", kind, "hint", hint)
		}
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("error closing database connection", "error", err)
		}
	}()
	logger.Info("database connection established", "database", cfg.Database.App().DBName)

	// Initialize Redis client
	redisClient, err := initRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("error closing redis connection", "error", err)
		}
	}()
	logger.Info("redis connection established", "addr", cfg.Redis.Addr())

	tokenService, err := jwt.NewTokenServiceFromFiles(
		cfg.JWT.PrivateKeyPath,
		cfg.JWT.PublicKeyPath,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.Issuer,
	)
	if err != nil {
		return fmt.Errorf("initialize token service: %w", err)
	}
	tokenBlacklist := blacklist.NewTokenBlacklist(redisClient)

	mailer, err := initEmail(cfg, logger)
	if err != nil {
		return err
	}

	validate := validator.NewValidator()

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	fieldRepo := postgres.NewFieldRepository(db)
	deviceRepo := postgres.NewDeviceRepository(db)
	readingRepo := postgres.NewReadingRepository(db)
	productRepo := postgres.NewProductRepository(db)

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		hash.NewHasher(hash.DefaultParams),
		tokenService,
		tokenBlacklist,
		mailer,
		cfg.Auth,
		logger,
	)
	farmService := service.NewFarmService(fieldRepo, deviceRepo, readingRepo, logger)
	marketService := service.NewMarketService(productRepo)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(map[string]handler.Check{
		"postgres": db.PingContext,
		"redis":    tokenBlacklist.Ping,
	})
	authHandler := handler.NewAuthHandler(authService, validate, cfg.Server.CookieSecure, logger)
	farmHandler := handler.NewFarmHandler(farmService, validate, logger)
	marketHandler := handler.NewMarketHandler(marketService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:               "AquaguardAI",
		DisableStartupMessage: cfg.IsProduction(),
		ErrorHandler:          handler.ErrorHandler(logger),
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
	})

	// Setup global middlewares
	app.Use(middleware.RecoveryMiddleware(logger))
	app.Use(middleware.LoggerMiddleware(logger))
	app.Use(middleware.CORSMiddleware(cfg.CORS.AllowOrigins))
	app.Use(middleware.AccessGuard(guard.DefaultRules()))

	handler.SetupRoutes(
		app,
		healthHandler,
		authHandler,
		farmHandler,
		marketHandler,
		middleware.AuthMiddleware(tokenService, tokenBlacklist),
	)

	// Dashboard pages; the guard above decides who may see them
	app.Static("/", cfg.Server.StaticDir, fiber.Static{Index: "index.html"})

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("server starting", "addr", addr, "environment", cfg.Server.Environment)
		serverErr <- app.Listen(addr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// initRedis creates the Redis client and verifies the connection
func initRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// initEmail picks Resend when enabled and falls back to logging otherwise.
func initEmail(cfg *config.Config, logger *slog.Logger) (email.Sender, error) {
	if !cfg.Email.Enabled {
		logger.Info("email disabled (set EMAIL_ENABLED=true to enable)")
		return email.NewNoopSender(logger), nil
	}

	sender, err := email.NewResendSender(email.Config{
		APIKey:       cfg.Email.APIKey,
		FromEmail:    cfg.Email.FromEmail,
		FromName:     cfg.Email.FromName,
		DashboardURL: cfg.Email.DashboardURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize email: %w", err)
	}
	logger.Info("email enabled", "provider", "resend", "from", cfg.Email.FromEmail)
	return sender, nil
}
