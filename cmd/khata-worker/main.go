package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"khata/internal/amqp"
	"khata/internal/cli"
	"khata/internal/mirror/sheets"
	"khata/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting khata-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := cli.InitStore(ctx, logger, cfg)
	defer func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	}()

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Spreadsheet mirror is optional.
	var mirror worker.TransactionMirror
	if cfg.SheetsSpreadsheetID != "" {
		m, err := sheets.New(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsSheetName)
		if err != nil {
			logger.Error("Failed to initialize spreadsheet mirror", "error", err)
			os.Exit(1)
		}
		mirror = m
		logger.Info("Spreadsheet mirror enabled", "spreadsheet_id", cfg.SheetsSpreadsheetID)
	} else {
		logger.Info("Spreadsheet mirror disabled - no SHEETS_SPREADSHEET_ID provided")
	}

	debtWorker := worker.NewDebtWorker(result.Store, mirror, cfg.ReconcileBatchSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeWithReconnect(gctx, func(msg *amqp.LedgerEventMessage) error {
			return debtWorker.HandleLedgerEvent(gctx, msg)
		})
	})

	g.Go(func() error {
		return debtWorker.RunReconcileLoop(gctx, cfg.ReconcileInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("khata-worker stopped gracefully")
}
