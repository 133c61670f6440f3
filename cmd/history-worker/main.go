package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"multitool/internal/amqp"
	"multitool/internal/config"
	"multitool/internal/log"
	"multitool/internal/services"
	"multitool/internal/sheets"
	gsheet "multitool/internal/sheets/google"
	mem "multitool/internal/sheets/memory"
	"multitool/internal/storage"
	"multitool/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.ConfigFromSettings(os.Stdout, cfg.LogLevel, cfg.LogFormat, "history-worker"))
	log.SetDefault(logger)

	logger.Info("Starting history-worker")

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	historyRepo, err := storage.NewHistoryRepository(cfg.HistoryDBPath, cfg.Location())
	if err != nil {
		logger.Error("Failed to open history database", log.FieldError, err, "path", cfg.HistoryDBPath)
		os.Exit(1)
	}
	defer historyRepo.Close()

	// The worker only reads, so it never publishes and needs no password.
	history := services.NewHistoryService(historyRepo, nil, "", cfg.Location())

	var exporter sheets.HistoryExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.ExportSheetPrefix)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(history, exporter)

	logger.Info("Consuming history events", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeHistoryEvents(ctx, exportWorker.HandleHistoryEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("History worker stopped gracefully")
}
