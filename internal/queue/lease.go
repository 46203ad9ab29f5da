package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Lease is a pulled job together with the transaction that locks its row.
// Exactly one of Touch, Complete or Delete commits it; Release rolls back
// whatever is still open and is safe to defer.
type Lease struct {
	tx   *sqlx.Tx
	job  Job
	done bool
}

// Job returns a copy of the leased row
func (l *Lease) Job() *Job {
	job := l.job
	return &job
}

// Touch restarts the lease clock and commits, leaving the job pending
func (l *Lease) Touch(ctx context.Context) error {
	return l.commit(ctx, "touch leased job", StatusPending, leaseTouchSQL, l.job.ID, StatusPending)
}

// Complete marks the leased job complete and commits
func (l *Lease) Complete(ctx context.Context) error {
	return l.commit(ctx, "complete leased job", StatusComplete, leaseStatusSQL, StatusComplete, l.job.ID, StatusPending)
}

// Delete marks the leased job deleted and commits
func (l *Lease) Delete(ctx context.Context) error {
	return l.commit(ctx, "delete leased job", StatusDeleted, leaseStatusSQL, StatusDeleted, l.job.ID, StatusPending)
}

// Release rolls the transaction back if it is still open
func (l *Lease) Release() error {
	if l.done {
		return nil
	}
	l.done = true

	if err := l.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return unavailable("release lease", err)
	}
	return nil
}

func (l *Lease) commit(ctx context.Context, op string, status Status, query string, args ...interface{}) error {
	if l.done {
		return ErrLeaseClosed
	}

	var updatedAt time.Time
	if err := l.tx.GetContext(ctx, &updatedAt, query, args...); err != nil {
		l.Release()
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: job %d", ErrJobTerminal, l.job.ID)
		}
		return unavailable(op, err)
	}

	l.done = true
	if err := l.tx.Commit(); err != nil {
		return unavailable("commit "+op, err)
	}

	l.job.Status = status
	l.job.UpdatedAt = updatedAt
	return nil
}
