package batchclient

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmission is returned when a batch cannot be created
	ErrSubmission = errors.New("batch submission failed")

	// ErrPoll is returned when a job status cannot be read
	ErrPoll = errors.New("job status poll failed")

	// ErrFetch is returned when job results cannot be read
	ErrFetch = errors.New("job result fetch failed")
)

// StatusError is a non-success HTTP answer from the batch service
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
