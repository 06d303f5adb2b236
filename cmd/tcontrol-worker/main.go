package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tcontrol/internal/amqp"
	"tcontrol/internal/cli"
	"tcontrol/internal/postgres"
	"tcontrol/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting tcontrol-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// The worker exists solely to replicate to the hosted mirror; without
	// a Postgres URL there is nothing for it to do.
	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL is required for the sync worker")
		os.Exit(1)
	}
	mirror, err := postgres.NewRepository(cfg.PostgresURL, cfg.AccountID)
	if err != nil {
		logger.Error("Failed to initialize Postgres mirror", "error", err)
		os.Exit(1)
	}
	defer mirror.Close()
	logger.Info("Postgres mirror initialized", "account_id", cfg.AccountID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncWorker := worker.NewSyncWorker(sqliteRepo, mirror, cfg.SyncBatchSize)

	// Catch up on anything written while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
		// Keep going; the periodic sweep retries.
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.Consume(gctx, func(msg *amqp.SyncMessage) error {
			return syncWorker.HandleMessage(gctx, msg)
		})
	})

	// Periodic sweep for rows whose queue message was lost.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := syncWorker.ProcessPendingJobs(gctx); err != nil {
					logger.Error("Periodic sync failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
