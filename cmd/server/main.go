// Package main is the entry point for the allocator bot: a conversational
// agent that fetches historical asset prices, optimizes portfolio weights
// under four risk models, persists the resulting allocations, and streams
// progress and results back to the caller over server-sent events.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfold/allocator-bot/internal/agent"
	"github.com/quantfold/allocator-bot/internal/clients/fmp"
	"github.com/quantfold/allocator-bot/internal/config"
	"github.com/quantfold/allocator-bot/internal/modules/allocation"
	"github.com/quantfold/allocator-bot/internal/modules/optimization"
	"github.com/quantfold/allocator-bot/internal/modules/prices"
	"github.com/quantfold/allocator-bot/internal/server"
	"github.com/quantfold/allocator-bot/internal/store"
	"github.com/quantfold/allocator-bot/internal/validation"
	"github.com/quantfold/allocator-bot/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	ctx := context.Background()

	// Select the persistence backend once at startup; everything downstream
	// sees the same Store interface.
	var st store.Store
	var bucketAPI validation.BucketAPI
	if cfg.S3Enabled {
		s3Client, err := store.NewS3Client(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		st = store.NewS3Store(s3Client, cfg.S3BucketName, cfg.AllocationDataFile, cfg.TaskDataFile, log)
		bucketAPI = s3Client
		log.Info().Str("bucket", cfg.S3BucketName).Msg("Using S3 storage backend")
	} else {
		st = store.NewFileStore(cfg.DataFolderPath, cfg.AllocationDataFile, cfg.TaskDataFile, log)
		log.Info().Str("path", cfg.DataFolderPath).Msg("Using local storage backend")
	}

	fmpClient := fmp.NewClient(cfg.FMPAPIKey, log)
	llmClient := agent.NewLLMClient(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, log)

	validator := validation.New(cfg, llmClient, bucketAPI, fmpClient, log)
	if err := validator.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Environment validation failed")
	}

	bot := agent.New(
		llmClient,
		prices.NewBuilder(fmpClient, log),
		optimization.NewService(log),
		allocation.NewComposer(log),
		st,
		log,
	)

	srv := server.New(server.Config{
		Log:    log,
		Config: cfg,
		Agent:  bot,
		Store:  st,
	})

	// Run the server and wait for a shutdown signal.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Allocator bot stopped")
}
