package sink

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/scrapequeue/internal/batchclient"
	"github.com/cuongbtq/scrapequeue/internal/queue"
)

// Log writes every result record of a completed job to the logger
type Log struct {
	logger *slog.Logger
}

// NewLog creates a new Log sink
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Handle logs each result record of the job
func (s *Log) Handle(_ context.Context, job *queue.Job, payload *batchclient.ContentPayload) error {
	s.logger.Info("Job results received",
		slog.Int64("job_id", job.ID),
		slog.String("external_job_id", job.ExternalJobID),
		slog.Int("results", len(payload.Results)),
	)

	for i, record := range payload.Results {
		s.logger.Info("Job result",
			slog.String("external_job_id", job.ExternalJobID),
			slog.Int("index", i),
			slog.String("content", string(record)),
		)
	}

	return nil
}
