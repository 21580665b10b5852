package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dkotenko/telegpt/internal"
	"github.com/dkotenko/telegpt/internal/ai"
	"github.com/dkotenko/telegpt/internal/ai/mock"
	"github.com/dkotenko/telegpt/internal/ai/openai"
	"github.com/dkotenko/telegpt/internal/bot"
	"github.com/dkotenko/telegpt/internal/domain"
	"github.com/dkotenko/telegpt/internal/ops"
	"github.com/dkotenko/telegpt/internal/service"
	"github.com/dkotenko/telegpt/internal/storage"
	"github.com/dkotenko/telegpt/internal/store"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Optional tariff overrides
	if cfg.TariffsFile != "" {
		if err := domain.LoadTariffs(cfg.TariffsFile); err != nil {
			return fmt.Errorf("tariff load failed: %w", err)
		}
		logger.Info("Tariff overrides loaded", "file", cfg.TariffsFile)
	}

	// Initialize account store
	var accountStore store.AccountStore
	switch cfg.Store {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer client.Disconnect(ctx)

		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		logger.Info("Database ready")

		accountStore = store.NewMongoStore(client, logger)
	case "memory":
		logger.Warn("Using in-memory account store, accounts will not survive a restart")
		accountStore = store.NewMemoryStore()
	}

	// Initialize file storage
	var files storage.Store
	switch cfg.StorageProvider {
	case "s3":
		files, err = storage.NewS3Store(storage.S3Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3BucketName,
		}, logger)
		if err != nil {
			return fmt.Errorf("s3 storage initialization failed: %w", err)
		}
	case "local":
		files, err = storage.NewLocalStore(cfg.LocalStoragePath, logger)
		if err != nil {
			return fmt.Errorf("local storage initialization failed: %w", err)
		}
	}

	// Initialize AI providers
	var providers service.Providers
	switch cfg.AIProvider {
	case "openai":
		p, err := openai.New(openai.Config{
			APIKey:       cfg.OpenAIAPIKey,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrganization,
			Project:      cfg.OpenAIProject,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("openai provider initialization failed: %w", err)
		}
		providers = service.Providers{Chat: p, Image: p, Transcriber: p}
	case "mock":
		logger.Warn("Using mock AI provider")
		p := mock.New(logger)
		providers = service.Providers{Chat: p, Image: p, Transcriber: p}
	}

	// Initialize services
	accounts := service.NewAccounts(accountStore, logger)
	subscriptions := service.NewSubscriptions(accounts, logger)
	dispatcher := service.NewDispatcher(accounts, providers, logger)

	// Initialize the Telegram bot
	tgbot, err := bot.New(bot.Config{
		Token:         cfg.TelegramBotToken,
		ProviderToken: cfg.PaymentProviderToken,
		PollTimeout:   cfg.PollTimeout,
	}, accounts, subscriptions, dispatcher, files, logger)
	if err != nil {
		return fmt.Errorf("bot initialization failed: %w", err)
	}

	// Operational HTTP server (health and metrics)
	opsServer := ops.NewServer(ops.Config{
		Port:            cfg.OpsPort,
		MetricsUsername: cfg.MetricsUsername,
		MetricsPassword: cfg.MetricsPassword,
	}, logger)

	// ==========================================================================
	// Start polling and serving
	// ==========================================================================

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	errChan := make(chan error, 2)

	go func() {
		if err := tgbot.Run(pollCtx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("bot polling failed: %w", err)
		}
	}()

	go func() {
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("ops server failed: %w", err)
		}
	}()

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...", "signal", sig.String())
	}

	stopPolling()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ops server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
