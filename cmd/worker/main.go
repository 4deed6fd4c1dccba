package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/addon-herd/internal/database"
	"github.com/hugh/addon-herd/internal/manifest"
	"github.com/hugh/addon-herd/internal/notify"
	"github.com/hugh/addon-herd/internal/platform"
	"github.com/hugh/addon-herd/internal/syncer"
	"github.com/hugh/addon-herd/internal/tasks"
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

	logger.Info("starting addon-herd worker")

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// The worker needs the same identity as the server to unwrap account keys.
	if cfg.Encryption.Identity == "" {
		logger.Error("ENCRYPTION_IDENTITY must be set for the worker")
		os.Exit(1)
	}
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Identity)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	keyring := crypto.NewKeyring(encryptor, cfg.Encryption.DEKCacheTTL())

	// Redis cache for manifest fetches
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis for caching", "error", err)
		redisClient = nil
	}

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

	// Asynq client so handlers can enqueue follow-up tasks
	asynqClient := queue.NewClient(&cfg.Redis)

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, 10)

	// Create task handler
	handler := tasks.NewHandler(db, logger, syncService, dispatcher, asynqClient)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drive the schedule from inside the worker. The tick task itself is
	// cheap; enqueueing it through the queue keeps a single worker instance
	// processing ticks even if several workers run this loop.
	go func() {
		ticker := time.NewTicker(cfg.Sync.SchedulerTick())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := asynqClient.EnqueueContext(ctx, tasks.NewSchedulerTickTask()); err != nil {
					logger.Error("failed to enqueue scheduler tick", "error", err)
				}
			}
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	asynqClient.Close()
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
