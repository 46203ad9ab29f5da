package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/scrapequeue/internal/queue"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop runs one consumer cycle per token received
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case <-w.cyclesChan:
			outcome, err := w.runner.RunCycle(ctx)
			if err != nil {
				// The lease was rolled back; the job is retried once it expires
				w.logger.Warn("Cycle failed",
					slog.String("worker_name", workerName),
					slog.Bool("store_unavailable", isStoreUnavailable(err)),
					slog.String("error", err.Error()),
				)
				continue
			}

			w.logger.Debug("Cycle finished",
				slog.String("worker_name", workerName),
				slog.String("outcome", string(outcome)),
			)
		}
	}
}

func isStoreUnavailable(err error) bool {
	return errors.Is(err, queue.ErrStoreUnavailable)
}
