package batchclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/scrapequeue/shared/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:  server.URL,
		Username: "user",
		Password: "secret",
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    time.Millisecond,
			MaxDelay: 5 * time.Millisecond,
		},
	}, logger.Discard(), WithHTTPClient(server.Client()))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://example.test/v1/"}, logger.Discard())

	assert.Equal(t, "http://example.test/v1", c.baseURL)
	assert.Equal(t, DefaultSource, c.source)
	assert.Equal(t, uint(1), c.retry.Attempts)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)

	c = NewClient(Config{}, logger.Discard())
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}

func TestCreateJobs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/queries/batch", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)

		var body batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultSource, body.Source)
		assert.Equal(t, []string{"https://a.test", "https://b.test"}, body.URL)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"queries":[{"id":"111","url":"https://a.test"},{"id":222,"url":"https://b.test"}]}`))
	})

	queries, err := c.CreateJobs(context.Background(), []string{"https://a.test", "https://b.test"})
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, JobID("111"), queries[0].ID)
	assert.Equal(t, JobID("222"), queries[1].ID)
}

func TestCreateJobs_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"message":"bad credentials"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "server error is not retried",
			status:     http.StatusBadGateway,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:   "empty query list",
			status: http.StatusOK,
			body:   `{"queries":[]}`,
		},
		{
			name:   "query without id",
			status: http.StatusOK,
			body:   `{"queries":[{"url":"https://a.test"}]}`,
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{"queries":`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			queries, err := c.CreateJobs(context.Background(), []string{"https://a.test"})
			require.ErrorIs(t, err, ErrSubmission)
			assert.Nil(t, queries)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

			if tt.wantStatus != 0 {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
			}
		})
	}
}

func TestCreateJobs_NoURLs(t *testing.T) {
	c := NewClient(Config{}, logger.Discard())

	_, err := c.CreateJobs(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSubmission)
}

func TestIsDone(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   bool
	}{
		{name: "done", status: "done", want: true},
		{name: "pending", status: "pending", want: false},
		{name: "faulted", status: "faulted", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/queries/42", r.URL.Path)
				w.Write([]byte(`{"id":"42","status":"` + tt.status + `"}`))
			})

			done, err := c.IsDone(context.Background(), "42")
			require.NoError(t, err)
			assert.Equal(t, tt.want, done)
		})
	}
}

func TestIsDone_RetriesTransientFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"done"}`))
	})

	done, err := c.IsDone(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestIsDone_GivesUpAfterAttempts(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.IsDone(context.Background(), "42")
	require.ErrorIs(t, err, ErrPoll)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestIsDone_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.IsDone(context.Background(), "42")
	require.ErrorIs(t, err, ErrPoll)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/queries/42/results", r.URL.Path)
		w.Write([]byte(`{"results":[{"content":{"title":"x"}},{"content":{"title":"y"}}]}`))
	})

	payload, err := c.FetchResult(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, payload)
	require.Len(t, payload.Results, 2)
	assert.JSONEq(t, `{"content":{"title":"x"}}`, string(payload.Results[0]))
}

func TestFetchResult_Vanished(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	payload, err := c.FetchResult(context.Background(), "42")
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestFetchResult_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "malformed body", status: http.StatusOK, body: `{"results":[`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			payload, err := c.FetchResult(context.Background(), "42")
			require.ErrorIs(t, err, ErrFetch)
			assert.Nil(t, payload)
		})
	}
}

func TestFetchResult_CanceledContext(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchResult(ctx, "42")
	require.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestJobID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    JobID
		wantErr bool
	}{
		{name: "string", input: `"7215"`, want: "7215"},
		{name: "number", input: `7215`, want: "7215"},
		{name: "large number", input: `7251893711958601729`, want: "7251893711958601729"},
		{name: "object", input: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id JobID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&StatusError{StatusCode: http.StatusInternalServerError}))
	assert.True(t, isTransient(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, isTransient(&StatusError{StatusCode: http.StatusBadRequest}))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(assert.AnError))
}
