package batchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
)

const (
	// DefaultBaseURL is the public batch-processing endpoint
	DefaultBaseURL = "https://data.oxylabs.io/v1"
	// DefaultSource is the scraper source sent with every batch
	DefaultSource = "universal_ecommerce"

	statusDone      = "done"
	maxErrorBodyLen = 512
)

// RetryConfig bounds retries of idempotent calls (status and result reads)
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// Config holds batch service client configuration
type Config struct {
	BaseURL  string
	Username string
	Password string
	Source   string
	Timeout  time.Duration
	Retry    RetryConfig
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client talks to the remote batch-processing service
type Client struct {
	baseURL    string
	username   string
	password   string
	source     string
	retry      RetryConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Client instance
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	source := cfg.Source
	if source == "" {
		source = DefaultSource
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryCfg := cfg.Retry
	// retry-go treats zero attempts as "retry forever"
	if retryCfg.Attempts == 0 {
		retryCfg.Attempts = 1
	}

	c := &Client{
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		source:     source,
		retry:      retryCfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CreateJobs submits one batch and returns the remote jobs in request order.
// Submissions are never retried since the endpoint is not idempotent.
func (c *Client) CreateJobs(ctx context.Context, urls []string) ([]Query, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no urls to submit", ErrSubmission)
	}

	var resp batchResponse
	noContent, err := c.send(ctx, http.MethodPost, "/queries/batch", batchRequest{
		Source: c.source,
		URL:    urls,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	if noContent || len(resp.Queries) == 0 {
		return nil, fmt.Errorf("%w: response contained no queries", ErrSubmission)
	}

	for _, q := range resp.Queries {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: response contained a query without id", ErrSubmission)
		}
	}

	if len(resp.Queries) != len(urls) {
		c.logger.Warn("Batch returned a different number of jobs than submitted",
			slog.Int("submitted", len(urls)),
			slog.Int("returned", len(resp.Queries)),
		)
	}

	c.logger.Info("Batch submitted",
		slog.String("source", c.source),
		slog.Int("jobs", len(resp.Queries)),
	)

	return resp.Queries, nil
}

// IsDone reports whether the remote job finished. A job still running is
// false with a nil error.
func (c *Client) IsDone(ctx context.Context, id string) (bool, error) {
	var resp statusResponse
	_, err := c.getWithRetry(ctx, "/queries/"+url.PathEscape(id), &resp)
	if err != nil {
		return false, fmt.Errorf("%w: job %s: %w", ErrPoll, id, err)
	}

	c.logger.Debug("Job status polled",
		slog.String("external_job_id", id),
		slog.String("status", resp.Status),
	)

	return resp.Status == statusDone, nil
}

// FetchResult downloads the results of a finished job. It returns nil, nil
// when the service answers 204 No Content, meaning the job vanished.
func (c *Client) FetchResult(ctx context.Context, id string) (*ContentPayload, error) {
	var payload ContentPayload
	noContent, err := c.getWithRetry(ctx, "/queries/"+url.PathEscape(id)+"/results", &payload)
	if err != nil {
		return nil, fmt.Errorf("%w: job %s: %w", ErrFetch, id, err)
	}

	if noContent {
		c.logger.Info("Job no longer exists on the batch service",
			slog.String("external_job_id", id),
		)
		return nil, nil
	}

	return &payload, nil
}

func (c *Client) getWithRetry(ctx context.Context, path string, out interface{}) (bool, error) {
	var noContent bool
	attempt := 0

	retrier := retry.New(
		retry.Context(ctx),
		retry.Attempts(c.retry.Attempts),
		retry.Delay(c.retry.Delay),
		retry.MaxDelay(c.retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)

	err := retrier.Do(func() error {
		attempt++
		var err error
		noContent, err = c.send(ctx, http.MethodGet, path, nil, out)
		if err != nil && isTransient(err) && uint(attempt) < c.retry.Attempts {
			c.logger.Warn("Batch service call failed, retrying",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		}
		return err
	})

	return noContent, err
}

// send performs one request. It reports true for 204 No Content and decodes
// any other 2xx body into out.
func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) (bool, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return true, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return false, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	return false, nil
}

// isTransient reports whether a failed call may succeed when repeated
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError ||
			statusErr.StatusCode == http.StatusTooManyRequests
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
