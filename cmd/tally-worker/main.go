package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/codec"
	"tally/internal/config"
	"tally/internal/services"
	"tally/internal/storage"
	"tally/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting tally-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	pipeline := codec.NewPipeline()
	pipeline.QR.Capacity = cfg.QRCapacityBytes
	pipeline.Stego.MaxPixels = cfg.StegoMaxPixels
	pipeline.MaxDecodedBytes = cfg.MaxPayloadBytes

	// The worker only reads, so it carries no publisher of its own.
	svc := services.NewDatasetService(repo, nil, pipeline)
	snapshots := worker.NewSnapshotWorker(svc, cfg.SnapshotDir, cfg.SnapshotTimeout)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Render snapshots for the current revision on startup, so a fresh
	// worker catches up with events it missed while down.
	startupEvent := amqp.NewDatasetEvent(0, amqp.SourceEdit, 0, 0)
	if revision, err := svc.Revision(ctx); err == nil {
		startupEvent.Revision = revision
		if err := snapshots.HandleDatasetEvent(ctx, startupEvent); err != nil {
			logger.Error("Startup snapshot failed", "error", err)
			// Don't exit - continue with normal operation
		}
	} else {
		logger.Error("Failed to read dataset revision", "error", err)
	}

	// Consume events, reconnecting on connection failures.
	go func() {
		for {
			err := amqpClient.ConsumeDatasetEvents(ctx, func(ev *amqp.DatasetEvent) error {
				return snapshots.HandleDatasetEvent(ctx, ev)
			})
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}

			logger.Error("Event consumption failed", "error", err)
			if reconnectErr := amqpClient.Reconnect(ctx); reconnectErr != nil {
				if !errors.Is(reconnectErr, context.Canceled) {
					logger.Error("AMQP reconnect failed", "error", reconnectErr)
				}
				cancel()
				return
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight snapshot renders a moment to finish
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
