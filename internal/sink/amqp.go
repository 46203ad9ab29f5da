package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/scrapequeue/internal/batchclient"
	"github.com/cuongbtq/scrapequeue/internal/queue"
)

const contentTypeJSON = "application/json"

// Publisher sends one message body to the broker
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Message is the body published for every completed job
type Message struct {
	JobID         int64             `json:"job_id"`
	ExternalJobID string            `json:"external_job_id"`
	Results       []json.RawMessage `json:"results"`
}

// AMQP publishes completed job results to RabbitMQ
type AMQP struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewAMQP creates a new AMQP sink
func NewAMQP(publisher Publisher, logger *slog.Logger) *AMQP {
	return &AMQP{
		publisher: publisher,
		logger:    logger,
	}
}

// Handle publishes one message carrying all result records of the job
func (s *AMQP) Handle(ctx context.Context, job *queue.Job, payload *batchclient.ContentPayload) error {
	results := payload.Results
	if results == nil {
		results = []json.RawMessage{}
	}

	body, err := json.Marshal(Message{
		JobID:         job.ID,
		ExternalJobID: job.ExternalJobID,
		Results:       results,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal results of job %s: %w", job.ExternalJobID, err)
	}

	if err := s.publisher.Publish(ctx, body, contentTypeJSON); err != nil {
		return fmt.Errorf("failed to publish results of job %s: %w", job.ExternalJobID, err)
	}

	s.logger.Info("Job results published",
		slog.String("external_job_id", job.ExternalJobID),
		slog.Int("results", len(results)),
	)

	return nil
}
