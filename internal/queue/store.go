package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DefaultLeaseDuration is how long a pulled job stays invisible after a touch
const DefaultLeaseDuration = 10 * time.Second

// Options tunes the store
type Options struct {
	LeaseDuration time.Duration
}

// Store is the Postgres-backed job queue. It holds no transaction of its own;
// every open transaction belongs to a Lease returned by Pull.
type Store struct {
	db            *sqlx.DB
	leaseDuration time.Duration
	logger        *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(db *sqlx.DB, opts Options, logger *slog.Logger) *Store {
	lease := opts.LeaseDuration
	if lease <= 0 {
		lease = DefaultLeaseDuration
	}

	return &Store{
		db:            db,
		leaseDuration: lease,
		logger:        logger,
	}
}

// LeaseDuration returns the configured lease window
func (s *Store) LeaseDuration() time.Duration {
	return s.leaseDuration
}

// Setup creates the queue table. It returns false without touching the schema
// when the table already exists.
func (s *Store) Setup(ctx context.Context) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, unavailable("begin setup transaction", err)
	}
	defer tx.Rollback()

	// Serialize concurrent setups; released with the transaction.
	if _, err := tx.ExecContext(ctx, setupLockSQL, setupLockKey); err != nil {
		return false, unavailable("acquire setup lock", err)
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, tableExistsSQL, TableName); err != nil {
		return false, unavailable("inspect schema", err)
	}

	if exists {
		s.logger.Info("Queue table already exists", slog.String("table", TableName))
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, createSchemaSQL); err != nil {
		return false, unavailable("create queue table", err)
	}

	if err := tx.Commit(); err != nil {
		return false, unavailable("commit setup", err)
	}

	s.logger.Info("Queue table created", slog.String("table", TableName))
	return true, nil
}

// Push enqueues one pending row for the external job
func (s *Store) Push(ctx context.Context, externalJobID string) error {
	if externalJobID == "" {
		return ErrInvalidJobID
	}

	if _, err := s.db.ExecContext(ctx, pushSQL, externalJobID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, externalJobID)
		}
		return unavailable("push job", err)
	}

	s.logger.Debug("Job pushed", slog.String("external_job_id", externalJobID))
	return nil
}

// Pull leases one eligible job, picked at random among the eligible rows.
// It returns nil, nil when nothing is eligible. The returned lease owns an
// open transaction holding the row lock; callers must Touch, Complete, Delete
// or Release it.
func (s *Store) Pull(ctx context.Context) (*Lease, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin pull transaction", err)
	}

	var job Job
	err = tx.GetContext(ctx, &job, pullSQL, StatusPending, s.leaseDuration.Milliseconds())
	if err != nil {
		tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("pull job", err)
	}

	s.logger.Debug("Job leased",
		slog.Int64("id", job.ID),
		slog.String("external_job_id", job.ExternalJobID),
	)

	return &Lease{tx: tx, job: job}, nil
}

// Touch restarts the lease clock of a pending job
func (s *Store) Touch(ctx context.Context, externalJobID string) error {
	return s.transition(ctx, "touch job", touchSQL, externalJobID, StatusPending)
}

// Complete marks a pending job complete. Completing a complete job is a no-op.
func (s *Store) Complete(ctx context.Context, externalJobID string) error {
	return s.transition(ctx, "complete job", statusSQL, externalJobID, StatusComplete)
}

// Delete marks a pending job deleted. Deleting a deleted job is a no-op.
func (s *Store) Delete(ctx context.Context, externalJobID string) error {
	return s.transition(ctx, "delete job", statusSQL, externalJobID, StatusDeleted)
}

func (s *Store) transition(ctx context.Context, op, query, externalJobID string, target Status) error {
	if externalJobID == "" {
		return ErrInvalidJobID
	}

	var res sql.Result
	var err error
	if target == StatusPending {
		res, err = s.db.ExecContext(ctx, query, externalJobID, StatusPending)
	} else {
		res, err = s.db.ExecContext(ctx, query, target, externalJobID, StatusPending)
	}
	if err != nil {
		return unavailable(op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return unavailable(op, err)
	}
	if rowsAffected > 0 {
		s.logger.Info("Job updated",
			slog.String("external_job_id", externalJobID),
			slog.String("status", string(target)),
		)
		return nil
	}

	job, err := s.Get(ctx, externalJobID)
	if err != nil {
		return err
	}

	return checkTransition(job.Status, target)
}

// checkTransition decides the outcome of a transition that matched no pending row
func checkTransition(current, target Status) error {
	if current == target && target.IsTerminal() {
		return nil
	}
	if current.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, current)
	}
	return nil
}

// Get returns the job with the given external id
func (s *Store) Get(ctx context.Context, externalJobID string) (*Job, error) {
	var job Job
	if err := s.db.GetContext(ctx, &job, getSQL, externalJobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, unavailable("get job", err)
	}
	return &job, nil
}

// ListFilter selects a page of jobs, newest first
type ListFilter struct {
	Status   Status
	PageSize int
	BeforeID int64 // keyset cursor; 0 starts from the newest row
}

// List returns up to PageSize+1 jobs so callers can tell whether a next page exists
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Job, error) {
	query := `
		SELECT id, created_at, updated_at, status, external_job_id
		FROM job_queue
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.BeforeID > 0 {
		query += fmt.Sprintf(" AND id < $%d", argIdx)
		args = append(args, filter.BeforeID)
		argIdx++
	}

	query += " ORDER BY id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, unavailable("list jobs", err)
	}

	return jobs, nil
}

// StatusCounts is Stats keyed by the plain status string
func (s *Store) StatusCounts(ctx context.Context) (map[string]int64, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(stats))
	for st, n := range stats {
		counts[string(st)] = n
	}
	return counts, nil
}

// Stats counts jobs per status. Every status is present in the result.
func (s *Store) Stats(ctx context.Context) (map[Status]int64, error) {
	var rows []struct {
		Status Status `db:"status"`
		Count  int64  `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, statsSQL); err != nil {
		return nil, unavailable("count jobs", err)
	}

	stats := make(map[Status]int64, len(Statuses))
	for _, st := range Statuses {
		stats[st] = 0
	}
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}
