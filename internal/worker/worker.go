package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/scrapequeue/internal/consumer"
)

// CycleRunner runs one consumer cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (consumer.Outcome, error)
}

// Config holds worker configuration
type Config struct {
	Logger       *slog.Logger
	Runner       CycleRunner
	Concurrency  int
	PollInterval time.Duration
}

// Worker runs Concurrency consumer cycles every PollInterval
type Worker struct {
	logger       *slog.Logger
	runner       CycleRunner
	workerID     string
	concurrency  int
	pollInterval time.Duration
	cyclesChan   chan struct{}
	wg           sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		logger:       cfg.Logger,
		runner:       cfg.Runner,
		workerID:     uuid.NewString(),
		concurrency:  concurrency,
		pollInterval: cfg.PollInterval,
		cyclesChan:   make(chan struct{}, concurrency),
		stopChan:     make(chan struct{}),
	}
}

// Start spawns the pool and triggers a round of cycles right away and then
// on every tick. It blocks until ctx is canceled or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
	)

	w.spawnWorkerPool(ctx)
	w.dispatch()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker context canceled, stopping...")
			return nil
		case <-w.stopChan:
			return nil
		case <-ticker.C:
			w.dispatch()
		}
	}
}

// Stop gracefully stops the worker and waits for running cycles
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
	})
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// dispatch queues one cycle per pool slot. Slots still holding a queued
// cycle from an earlier tick are skipped.
func (w *Worker) dispatch() {
	queued := 0
	for i := 0; i < w.concurrency; i++ {
		select {
		case w.cyclesChan <- struct{}{}:
			queued++
		default:
		}
	}

	if queued < w.concurrency {
		w.logger.Debug("Worker pool busy, some cycles skipped",
			slog.Int("queued", queued),
			slog.Int("concurrency", w.concurrency),
		)
	}
}
