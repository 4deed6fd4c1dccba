package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hugh/addon-herd/internal/api"
	"github.com/hugh/addon-herd/internal/auth"
	"github.com/hugh/addon-herd/internal/database"
	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/hugh/addon-herd/internal/notify"
	"github.com/hugh/addon-herd/internal/platform"
	"github.com/hugh/addon-herd/internal/syncer"
	"github.com/hugh/addon-herd/pkg/config"
	"github.com/hugh/addon-herd/pkg/crypto"
	"github.com/hugh/addon-herd/pkg/queue"
	"github.com/hugh/addon-herd/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting addon-herd server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		redisClient = nil
	}

	// Asynq client for queueing background syncs
	asynqClient := queue.NewClient(&cfg.Redis)

	// Server age identity wraps every account's data-encryption key.
	if cfg.Encryption.Identity == "" {
		generated, err := crypto.GenerateKey()
		if err != nil {
			logger.Error("failed to generate encryption identity", "error", err)
			os.Exit(1)
		}
		cfg.Encryption.Identity = generated
		logger.Warn("ENCRYPTION_IDENTITY not set, using generated identity - stored secrets will be unreadable after restart")
	}
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Identity)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	keyring := crypto.NewKeyring(encryptor, cfg.Encryption.DEKCacheTTL())

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, keyring)

	platformClient := platform.NewClient(logger, &platform.Config{
		BaseURL: cfg.Platform.APIBase,
		Timeout: cfg.Platform.Timeout(),
	})
	fetcher := manifest.NewFetcher(logger, redisClient, &manifest.FetcherConfig{
		Timeout:  cfg.Sync.ManifestTimeout(),
		CacheTTL: cfg.Sync.ManifestCacheTTL(),
	})
	syncService := syncer.NewService(db, keyring, platformClient, fetcher, logger)
	syncService.SetManifestTimeout(cfg.Sync.ManifestTimeout())
	dispatcher := notify.NewDispatcher(logger)

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:            db,
		Redis:         redisClient,
		Logger:        logger,
		JWTService:    jwtService,
		AuthService:   authService,
		Keyring:       keyring,
		SyncService:   syncService,
		Dispatcher:    dispatcher,
		AsynqClient:   asynqClient,
		RateLimitReqs: cfg.RateLimit.Requests,
		RateLimitSecs: cfg.RateLimit.WindowSeconds,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Close Asynq client
	if asynqClient != nil {
		asynqClient.Close()
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
