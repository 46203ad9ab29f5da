package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/scrapequeue/internal/batchclient"
	"github.com/cuongbtq/scrapequeue/internal/metrics"
	"github.com/cuongbtq/scrapequeue/internal/queue"
)

// Outcome is the way a consumer cycle ended
type Outcome string

const (
	// OutcomeIdle means no job was eligible
	OutcomeIdle Outcome = "idle"
	// OutcomeDeferred means the remote job is still running and was touched
	OutcomeDeferred Outcome = "deferred"
	// OutcomeVanished means the remote job no longer exists and was deleted
	OutcomeVanished Outcome = "vanished"
	// OutcomeCompleted means the results were handed off and the job completed
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed labels cycles that returned an error
	OutcomeFailed Outcome = "failed"
)

// DefaultCycleTimeout bounds one cycle when Config leaves it unset
const DefaultCycleTimeout = 2 * time.Minute

// Queue leases pending jobs
type Queue interface {
	Pull(ctx context.Context) (*queue.Lease, error)
}

// Remote reads the state of remote jobs
type Remote interface {
	IsDone(ctx context.Context, id string) (bool, error)
	FetchResult(ctx context.Context, id string) (*batchclient.ContentPayload, error)
}

// Sink receives the results of finished jobs
type Sink interface {
	Handle(ctx context.Context, job *queue.Job, payload *batchclient.ContentPayload) error
}

// Config holds consumer configuration
type Config struct {
	CycleTimeout time.Duration
}

// Consumer resolves one queued job per cycle
type Consumer struct {
	queue   Queue
	remote  Remote
	sink    Sink
	config  Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a new Consumer instance
func New(q Queue, remote Remote, sink Sink, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Consumer {
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}

	return &Consumer{
		queue:   q,
		remote:  remote,
		sink:    sink,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// RunCycle pulls one eligible job and drives it forward: touched while the
// remote job runs, deleted when it vanished, completed once its results were
// handed to the sink. Any error rolls the lease back and is returned; the row
// becomes eligible again after its previous lease expires.
func (c *Consumer) RunCycle(ctx context.Context) (Outcome, error) {
	start := time.Now()
	logger := c.logger.With(slog.String("cycle_id", uuid.NewString()))

	ctx, cancel := context.WithTimeout(ctx, c.config.CycleTimeout)
	defer cancel()

	outcome, err := c.runCycle(ctx, logger)
	elapsed := time.Since(start)

	if err != nil {
		c.metrics.ObserveCycle(string(OutcomeFailed), elapsed)
		logger.Error("Consumer cycle failed",
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return OutcomeFailed, err
	}

	c.metrics.ObserveCycle(string(outcome), elapsed)
	logger.Debug("Consumer cycle finished",
		slog.String("outcome", string(outcome)),
		slog.Duration("elapsed", elapsed),
	)
	return outcome, nil
}

func (c *Consumer) runCycle(ctx context.Context, logger *slog.Logger) (Outcome, error) {
	lease, err := c.queue.Pull(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to pull job: %w", err)
	}
	if lease == nil {
		logger.Debug("No eligible job")
		return OutcomeIdle, nil
	}
	defer lease.Release()

	job := lease.Job()
	logger = logger.With(
		slog.Int64("job_id", job.ID),
		slog.String("external_job_id", job.ExternalJobID),
		slog.Bool("first_poll", job.NeverLeased()),
	)

	done, err := c.remote.IsDone(ctx, job.ExternalJobID)
	if err != nil {
		return "", err
	}

	if !done {
		if err := lease.Touch(ctx); err != nil {
			return "", fmt.Errorf("failed to defer job: %w", err)
		}
		logger.Info("Job still running, lease renewed")
		return OutcomeDeferred, nil
	}

	payload, err := c.remote.FetchResult(ctx, job.ExternalJobID)
	if err != nil {
		return "", err
	}

	if payload == nil {
		if err := lease.Delete(ctx); err != nil {
			return "", fmt.Errorf("failed to delete vanished job: %w", err)
		}
		logger.Warn("Remote job vanished, job deleted")
		return OutcomeVanished, nil
	}

	if err := c.sink.Handle(ctx, job, payload); err != nil {
		return "", fmt.Errorf("failed to hand off results: %w", err)
	}

	if err := lease.Complete(ctx); err != nil {
		return "", fmt.Errorf("failed to complete job: %w", err)
	}

	logger.Info("Job completed", slog.Int("results", len(payload.Results)))
	return OutcomeCompleted, nil
}
