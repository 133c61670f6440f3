package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"multitool/internal/adapters/gemini"
	"multitool/internal/adapters/rembg"
	"multitool/internal/adapters/ytdlp"
	"multitool/internal/amqp"
	"multitool/internal/artifact"
	"multitool/internal/cache"
	"multitool/internal/config"
	"multitool/internal/core"
	apphttp "multitool/internal/http"
	"multitool/internal/log"
	"multitool/internal/services"
	"multitool/internal/storage"
)

const (
	shutdownTimeout      = 30 * time.Second
	categoryCacheTTL     = 10 * time.Minute
	cacheCleanupInterval = 5 * time.Minute
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.ConfigFromSettings(os.Stdout, cfg.LogLevel, cfg.LogFormat, "multitool"))
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location()

	historyRepo, err := storage.NewHistoryRepository(cfg.HistoryDBPath, loc)
	if err != nil {
		return err
	}
	defer historyRepo.Close()

	ledgerRepo, err := storage.NewLedgerRepository(cfg.KakeiDBPath)
	if err != nil {
		return err
	}
	defer ledgerRepo.Close()

	archiveRepo, err := storage.NewArchiveRepository(cfg.BakusaiDBPath)
	if err != nil {
		return err
	}
	defer archiveRepo.Close()

	var store services.ArtifactStore
	switch cfg.ArtifactBackend {
	case "gcs":
		gcs, err := artifact.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			return err
		}
		defer gcs.Close()
		store = gcs
		logger.Info("Using GCS artifact store", "bucket", cfg.GCSBucket)
	default:
		local, err := artifact.NewLocalStore(cfg.ArtifactDir)
		if err != nil {
			return err
		}
		store = local
		logger.Info("Using local artifact store", "dir", cfg.ArtifactDir)
	}

	ai, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiVisionModel, cfg.GeminiTTSModel)
	if err != nil {
		return err
	}

	// A typed nil *amqp.Client must not reach the interface.
	var publisher services.EventPublisher
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer client.Close()
		publisher = client
		logger.Info("Publishing history events", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("History events disabled - no AMQP_URL provided")
	}
	if cfg.HistoryPassword == "" {
		logger.Warn("HISTORY_PASSWORD is empty, history pages will reject every password")
	}

	history := services.NewHistoryService(historyRepo, publisher, cfg.HistoryPassword, loc)

	categories := cache.NewLRUCache[core.Categories](1, categoryCacheTTL)
	caches := cache.NewManager()
	caches.Register("categories", categories)
	caches.StartCleanup(cacheCleanupInterval)
	defer caches.Stop()

	deps := apphttp.Dependencies{
		History:   history,
		Caption:   services.NewCaptionService(ai, store, history.Log(core.FeatureImageCaption), cfg.ExternalTimeout),
		Speech:    services.NewSpeechService(ai, store, history.Log(core.FeatureSpeech), cfg.ExternalTimeout),
		Media:     services.NewMediaService(ytdlp.New(cfg.YtdlpPath, cfg.YtdlpCookies, &http.Client{Timeout: 15 * time.Second}), store, history.Log(core.FeatureMediaDownload), cfg.ExternalTimeout, ""),
		Archive:   services.NewArchiveService(archiveRepo, history.Log(core.FeatureArchive)),
		Budget:    services.NewBudgetService(ledgerRepo, history.Log(core.FeatureBudget), categories, loc),
		Artifacts: store,
		Checks: map[string]apphttp.Pinger{
			"history_db": historyRepo,
			"kakei_db":   ledgerRepo,
			"bakusai_db": archiveRepo,
		},
		CacheStats: categories.Stats,
	}
	if cfg.RembgURL != "" {
		remover, err := rembg.New(cfg.RembgURL, cfg.ExternalTimeout)
		if err != nil {
			return err
		}
		deps.Background = services.NewBackgroundService(remover, store, history.Log(core.FeatureBackgroundRemoval), cfg.ExternalTimeout)
	} else {
		logger.Info("Background removal disabled - no REMBG_URL provided")
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		UploadMaxBytes:     cfg.UploadMaxBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AdminPassword:      cfg.AdminPassword(),
		Location:           loc,
		Logger:             logger,
	}, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting multitool server", "port", cfg.Port, "timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
