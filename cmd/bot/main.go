package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/azure/brand-mentions-bot/internal/config"
	"github.com/azure/brand-mentions-bot/internal/llm"
	"github.com/azure/brand-mentions-bot/internal/monitoring"
	"github.com/azure/brand-mentions-bot/internal/notifications"
	"github.com/azure/brand-mentions-bot/internal/scheduler"
	"github.com/azure/brand-mentions-bot/internal/server"
	"github.com/azure/brand-mentions-bot/internal/sources"
	"github.com/azure/brand-mentions-bot/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	logrus.Infof("Starting Brand Mentions Bot for %q", cfg.Brand)

	ctx := context.Background()

	store, err := storage.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		logrus.Fatalf("Failed to open mention store: %v", err)
	}
	defer store.Close()

	// Snapshot archive is optional
	var archive storage.SnapshotStore
	if cfg.StorageAccount != "" {
		blobArchive, err := storage.NewBlobArchive(ctx, cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize snapshot archive: %v", err)
		}
		archive = blobArchive
	}

	model, err := llm.NewClient(llm.Options{
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		Model:      cfg.LLMModel,
		Timeout:    cfg.LLMTimeout,
		RPM:        cfg.LLMRPM,
		MaxRetries: cfg.LLMMaxRetries,
	})
	if err != nil {
		logrus.Fatalf("Failed to create model client: %v", err)
	}

	reddit := sources.NewRedditSource(sources.RedditOptions{
		BaseURL:      cfg.RedditBaseURL,
		UserAgent:    cfg.RedditUserAgent,
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Limit:        cfg.FetchLimit,
		Timeout:      cfg.FetchTimeout,
	})

	var notifier notifications.NotificationInterface
	if cfg.NotificationsEnabled() {
		notifier = notifications.NewService(cfg)
	}

	monitoringService := monitoring.NewService(cfg, store, archive, notifier, reddit, model)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, monitoringService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      server.NewRouter(monitoringService),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // analyze and summary calls wait on the model
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if cfg.Debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
}
