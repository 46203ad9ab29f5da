package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/scrapequeue/internal/batchclient"
	"github.com/cuongbtq/scrapequeue/internal/metrics"
)

// ErrOrphanedJobs is returned when remote jobs were created but could not
// all be queued
var ErrOrphanedJobs = errors.New("remote jobs created but not queued")

// JobCreator creates remote jobs
type JobCreator interface {
	CreateJobs(ctx context.Context, urls []string) ([]batchclient.Query, error)
}

// Queue stores external job ids
type Queue interface {
	Push(ctx context.Context, externalJobID string) error
}

// Result lists the external job ids of one submission. Pushed ids are
// queued; Orphaned ids exist remotely but have no queue row.
type Result struct {
	Pushed   []string
	Orphaned []string
}

// Producer submits URL batches and queues the resulting jobs
type Producer struct {
	client  JobCreator
	queue   Queue
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new Producer instance
func New(client JobCreator, queue Queue, m *metrics.Metrics, logger *slog.Logger) *Producer {
	return &Producer{
		client:  client,
		queue:   queue,
		metrics: m,
		logger:  logger,
	}
}

// Submit creates one remote batch for urls and pushes every returned id.
// The first push failure stops the loop; the ids not yet pushed are returned
// in Result.Orphaned with an error wrapping ErrOrphanedJobs.
func (p *Producer) Submit(ctx context.Context, urls []string) (Result, error) {
	queries, err := p.client.CreateJobs(ctx, urls)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create jobs: %w", err)
	}

	result := Result{Pushed: make([]string, 0, len(queries))}
	for i, q := range queries {
		id := string(q.ID)

		err := p.queue.Push(ctx, id)
		p.metrics.ObservePush(err)
		if err != nil {
			for _, rest := range queries[i:] {
				result.Orphaned = append(result.Orphaned, string(rest.ID))
			}
			p.metrics.AddOrphaned(len(result.Orphaned))

			p.logger.Warn("Failed to queue remote jobs, they will never be consumed",
				slog.String("failed_job_id", id),
				slog.Any("orphaned_job_ids", result.Orphaned),
				slog.Int("pushed", len(result.Pushed)),
				slog.String("error", err.Error()),
			)
			return result, fmt.Errorf("%w: %d of %d: %w", ErrOrphanedJobs, len(result.Orphaned), len(queries), err)
		}

		result.Pushed = append(result.Pushed, id)
	}

	p.logger.Info("Batch queued",
		slog.Int("urls", len(urls)),
		slog.Int("jobs", len(result.Pushed)),
	)

	return result, nil
}
