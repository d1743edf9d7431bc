package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"enos-mapping-backend/config"
	"enos-mapping-backend/internal/api"
	"enos-mapping-backend/internal/classify"
	"enos-mapping-backend/internal/db"
	"enos-mapping-backend/internal/notification"
	"enos-mapping-backend/internal/orchestrator"
	"enos-mapping-backend/internal/remote"
	"enos-mapping-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "mapperd ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Push notifications are optional; without VAPID keys the service runs
	// with notifications disabled.
	var webpushOptions *webpush.Options
	var pool *notification.WorkerPool
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		logger.Printf("notification worker pool started with %d workers", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys are not configured; push notifications disabled")
	}

	// The mapping orchestrator: remote inference first, local engine as the
	// guaranteed fallback.
	engine := classify.NewEngine()
	var client orchestrator.InferenceClient
	if cfg.Remote.Enabled && cfg.Remote.URL != "" {
		client = remote.NewClient(&cfg.Remote)
		logger.Printf("remote mapping service configured at %s", cfg.Remote.URL)
	} else {
		logger.Println("remote mapping service disabled; using local classification only")
	}
	mapper := orchestrator.New(client, engine, orchestrator.Config{
		Enabled:         cfg.Remote.Enabled && client != nil,
		MaxRetries:      cfg.Remote.MaxRetries,
		RetryBase:       cfg.Remote.RetryBase,
		PollInterval:    cfg.Remote.PollInterval,
		PollMaxAttempts: cfg.Remote.PollMaxAttempts,
	})

	// Initialize router
	router := api.NewRouter(&cfg.Server, appStore, mapper, engine, pool, webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
