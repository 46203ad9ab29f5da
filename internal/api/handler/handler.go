package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/scrapequeue/internal/metrics"
	"github.com/cuongbtq/scrapequeue/internal/producer"
	"github.com/cuongbtq/scrapequeue/internal/queue"
)

// JobReader is the read side of the job queue
type JobReader interface {
	Get(ctx context.Context, externalJobID string) (*queue.Job, error)
	List(ctx context.Context, filter queue.ListFilter) ([]queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int64, error)
}

// BatchSubmitter creates remote jobs and queues them
type BatchSubmitter interface {
	Submit(ctx context.Context, urls []string) (producer.Result, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	DBClient HealthChecker
	Jobs     JobReader
	Producer BatchSubmitter
	Metrics  *metrics.Metrics
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger   *slog.Logger
	jobs     JobReader
	producer BatchSubmitter
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:   deps.Logger,
		jobs:     deps.Jobs,
		producer: deps.Producer,
	}
}
