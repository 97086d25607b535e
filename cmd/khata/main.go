package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"khata/internal/amqp"
	"khata/internal/cli"
	apphttp "khata/internal/http"
	"khata/internal/log"
	"khata/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	result := cli.InitStore(context.Background(), logger, cfg)

	// AMQP is optional; without it the reconcile sweep in khata-worker still
	// keeps the totals honest.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = client
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	service := services.NewLedgerService(result.Store, publisher)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		AuthUser:     cfg.AuthUser,
		AuthPassword: cfg.AuthPassword,
	}, service)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		// service.Close also closes the store, so the backend cleanup hook
		// is not invoked separately here.
		if err := service.Close(); err != nil {
			logger.Error("Service close error", "error", err)
		}
	})

	logger.Info("Starting khata server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"auth_enabled", cfg.AuthUser != "")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
