package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/content-orchestrator/internal/adapters/httpapi"
	"github.com/cuongbtq/content-orchestrator/internal/bootstrap"
	"github.com/cuongbtq/content-orchestrator/internal/config"
	"github.com/cuongbtq/content-orchestrator/internal/distribution"
	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/pipeline"
	"github.com/cuongbtq/content-orchestrator/internal/worker"
	"github.com/cuongbtq/content-orchestrator/shared/clock"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := bootstrap.InitLogger(&cfg.Logging, "worker-service")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL client
	dbClient, err := bootstrap.InitPostgreSQL(ctx, &cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	// Job queue consumed by the worker pool
	jobsClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, cfg.RabbitMQ.Queue, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ job queue: %w", err)
	}
	defer jobsClient.Close()

	// Event queue shared with the API through the exchange
	eventsClient, err := bootstrap.InitRabbitMQ(&cfg.RabbitMQ, cfg.RabbitMQ.EventQueue, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ event queue: %w", err)
	}
	defer eventsClient.Close()

	appLogger.Info("RabbitMQ connection established")

	workerID := cfg.Worker.ID
	if workerID == "" {
		workerID, _ = os.Hostname()
	}

	bus, ingress := bootstrap.NewEventBus(eventsClient, cfg.App.Name+"-"+workerID, appLogger.Logger)
	core := bootstrap.NewCore(cfg, dbClient.GetDB(), bus, appLogger.Logger)
	collab := cfg.Collaborators

	driver := distribution.NewDriver(distribution.DriverConfig{
		Store:       core.Posts,
		Posting:     httpapi.NewPoster(bootstrap.NewCollaboratorClient(collab.Posting, appLogger.Logger)),
		Publisher:   bus,
		Clock:       clock.NewRealClock(),
		Logger:      appLogger.With(slog.String("component", "driver")).Logger,
		BatchSize:   cfg.Worker.Posting.BatchSize,
		Concurrency: cfg.Worker.Posting.Concurrency,
		PostTimeout: cfg.Worker.Posting.PostTimeout,
		ClaimTTL:    cfg.Worker.Posting.ClaimTTL,
	})

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:          appLogger.Logger,
		WorkerID:        workerID,
		Jobs:            core.Jobs,
		Runners:         initRunners(&collab, appLogger.Logger),
		Consumer:        jobsClient,
		Posts:           driver,
		Bus:             bus,
		Notifier:        httpapi.NewNotifier(bootstrap.NewCollaboratorClient(collab.Notifications, appLogger.Logger)),
		Clock:           clock.NewRealClock(),
		Concurrency:     cfg.Worker.Concurrency,
		PollInterval:    cfg.Worker.PollInterval,
		PostingInterval: cfg.Worker.PostingInterval,
		KindTimeouts:    kindTimeouts(&cfg.Worker),
		NotifyAttempts:  cfg.Worker.NotifyAttempts,
	})

	listener := distribution.NewReadyListener(bus, core.Scheduler, appLogger.With(slog.String("component", "ready-listener")).Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingress.Run(gctx) })
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return workerInstance.Start(gctx) })

	appLogger.Info("Worker service started successfully",
		slog.String("worker_id", workerID),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case <-gctx.Done():
		appLogger.Error("Worker loop exited, shutting down")
	}

	cancel()

	done := make(chan error, 1)
	go func() {
		workerInstance.Stop()
		done <- g.Wait()
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("Worker error",
				slog.Any("error", err),
			)
			return err
		}
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initRunners builds a runner for every configured job collaborator
func initRunners(cfg *config.CollaboratorsConfig, logger *slog.Logger) pipeline.Registry {
	services := pipeline.Services{
		Sync: pipeline.SyncTolerance{
			Dub:      cfg.Sync.DubTolerance,
			Subtitle: cfg.Sync.SubtitleTolerance,
		},
	}
	if client := bootstrap.NewCollaboratorClient(cfg.Generation, logger); client != nil {
		services.Generation = httpapi.NewTaskService(client)
	}
	if client := bootstrap.NewCollaboratorClient(cfg.Localization, logger); client != nil {
		services.Localization = httpapi.NewTaskService(client)
	}
	if client := bootstrap.NewCollaboratorClient(cfg.Ledger, logger); client != nil {
		services.Ledger = httpapi.NewLedger(client)
	}

	registry := pipeline.NewRegistry(services)
	for kind := range registry {
		logger.Info("Job runner configured",
			slog.String("kind", string(kind)),
		)
	}
	return registry
}

func kindTimeouts(cfg *config.WorkerConfig) map[domain.JobKind]time.Duration {
	out := make(map[domain.JobKind]time.Duration, len(cfg.KindTimeouts)+3)
	for _, kind := range []domain.JobKind{
		domain.JobKindGeneration,
		domain.JobKindLocalization,
		domain.JobKindBlockchainRegistration,
	} {
		out[kind] = cfg.JobTimeout
	}
	for kind, d := range cfg.KindTimeouts {
		out[domain.JobKind(kind)] = d
	}
	return out
}
