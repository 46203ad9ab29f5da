package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/scrapequeue/internal/batchclient"
	"github.com/cuongbtq/scrapequeue/internal/config"
	"github.com/cuongbtq/scrapequeue/internal/consumer"
	"github.com/cuongbtq/scrapequeue/internal/metrics"
	"github.com/cuongbtq/scrapequeue/internal/queue"
	"github.com/cuongbtq/scrapequeue/internal/sink"
	"github.com/cuongbtq/scrapequeue/internal/worker"
	"github.com/cuongbtq/scrapequeue/shared/logger"
	"github.com/cuongbtq/scrapequeue/shared/postgresql"
	"github.com/cuongbtq/scrapequeue/shared/rabbitmq"
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
	metricsAddr := flag.String("metrics-addr", ":9091", "Address for the Prometheus metrics endpoint, empty to disable")
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
	loggerCfg := cfg.LoggerConfig()
	loggerCfg.TimeFormat = time.RFC3339
	appLogger, err := logger.New(&loggerCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := postgresql.NewClient(context.Background(), cfg.PostgresConfig(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	resultSink, closeSink, err := initSink(context.Background(), cfg, appLogger.Logger)
	if err != nil {
		return err
	}
	defer closeSink()

	appMetrics := metrics.New()
	store := queue.NewStore(dbClient.GetDB(), queue.Options{LeaseDuration: cfg.Queue.LeaseDuration}, appLogger.Logger)
	setupCtx, setupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	created, err := store.Setup(setupCtx)
	setupCancel()
	if err != nil {
		return fmt.Errorf("failed to set up job queue: %w", err)
	}
	appLogger.Info("Job queue ready", slog.Bool("created", created))

	if err := appMetrics.RegisterQueueStats(store.StatusCounts); err != nil {
		return fmt.Errorf("failed to register queue metrics: %w", err)
	}

	client := batchclient.NewClient(cfg.BatchClientConfig(), appLogger.Logger)
	cycleRunner := consumer.New(store, client, resultSink,
		consumer.Config{CycleTimeout: cfg.Worker.CycleTimeout},
		appMetrics,
		appLogger.Logger,
	)

	if *metricsAddr != "" {
		metricsSrv := &http.Server{Addr: *metricsAddr, Handler: appMetrics.Handler()}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLogger.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
		defer metricsSrv.Close()
	}

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:       appLogger.Logger,
		Runner:       cycleRunner,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop worker; in-flight leases roll back
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initSink builds the result sink selected by configuration
func initSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (consumer.Sink, func(), error) {
	if cfg.Sink.Type != config.SinkRabbitMQ {
		return sink.NewLog(logger), func() {}, nil
	}

	rabbitClient, err := rabbitmq.NewClient(ctx, cfg.RabbitMQClientConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	logger.Info("RabbitMQ connection established")

	return sink.NewAMQP(rabbitClient, logger), func() { rabbitClient.Close() }, nil
}
