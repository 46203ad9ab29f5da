package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/scrapequeue/cmd/queuectl/commands"
	"github.com/cuongbtq/scrapequeue/internal/batchclient"
	"github.com/cuongbtq/scrapequeue/internal/config"
	"github.com/cuongbtq/scrapequeue/internal/consumer"
	"github.com/cuongbtq/scrapequeue/internal/producer"
	"github.com/cuongbtq/scrapequeue/internal/queue"
	"github.com/cuongbtq/scrapequeue/internal/sink"
	"github.com/cuongbtq/scrapequeue/shared/logger"
	"github.com/cuongbtq/scrapequeue/shared/postgresql"
	"github.com/cuongbtq/scrapequeue/shared/rabbitmq"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCmd(ctx, buildDeps).Execute(); err != nil {
		stop()
		os.Exit(1)
	}
}

// buildDeps wires the queue, batch client, producer and consumer from config
func buildDeps(ctx context.Context, configPath string) (*commands.Deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateCLIConfig(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	loggerCfg := cfg.LoggerConfig()
	loggerCfg.TimeFormat = time.RFC3339
	appLogger, err := logger.New(&loggerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	dbClient, err := postgresql.NewClient(ctx, cfg.PostgresConfig(), appLogger.Logger)
	if err != nil {
		appLogger.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	closers := []func(){
		func() { dbClient.Close() },
		func() { appLogger.Close() },
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var resultSink consumer.Sink = sink.NewLog(appLogger.Logger)
	if cfg.Sink.Type == config.SinkRabbitMQ {
		rabbitClient, err := rabbitmq.NewClient(ctx, cfg.RabbitMQClientConfig(), appLogger.Logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		closers = append([]func(){func() { rabbitClient.Close() }}, closers...)
		resultSink = sink.NewAMQP(rabbitClient, appLogger.Logger)
	}

	store := queue.NewStore(dbClient.GetDB(), queue.Options{LeaseDuration: cfg.Queue.LeaseDuration}, appLogger.Logger)
	client := batchclient.NewClient(cfg.BatchClientConfig(), appLogger.Logger)

	appLogger.Debug("Dependencies initialized", slog.String("config", configPath))

	return &commands.Deps{
		Store:    store,
		Producer: producer.New(client, store, nil, appLogger.Logger),
		Consumer: consumer.New(store, client, resultSink,
			consumer.Config{CycleTimeout: cfg.Worker.CycleTimeout},
			nil,
			appLogger.Logger,
		),
		Close: closeAll,
	}, nil
}
