package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps connectivity, lock and driver failures
	ErrStoreUnavailable = errors.New("job store unavailable")

	// ErrJobNotFound is returned when no row carries the external job id
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal is returned when a transition targets a completed or deleted job
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrDuplicateJob is returned when the external job id is already queued
	ErrDuplicateJob = errors.New("job already queued")

	// ErrInvalidJobID is returned for an empty external job id
	ErrInvalidJobID = errors.New("invalid external job id")

	// ErrLeaseClosed is returned when a lease is used after commit or release
	ErrLeaseClosed = errors.New("lease already closed")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStoreUnavailable, op, err)
}
