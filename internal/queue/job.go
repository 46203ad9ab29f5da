package queue

import "time"

// Status is the lifecycle state of a queued job
type Status string

// Job status values as stored in the status column
const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusDeleted  Status = "deleted"
)

// Statuses lists every status in lifecycle order
var Statuses = []Status{StatusPending, StatusComplete, StatusDeleted}

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusDeleted
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusComplete, StatusDeleted:
		return true
	default:
		return false
	}
}

// Job is one row of the queue table. UpdatedAt doubles as the lease clock.
type Job struct {
	ID            int64     `db:"id"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	Status        Status    `db:"status"`
	ExternalJobID string    `db:"external_job_id"`
}

// NeverLeased reports whether the row has not been touched since it was pushed
func (j *Job) NeverLeased() bool {
	return j.UpdatedAt.Equal(j.CreatedAt)
}
