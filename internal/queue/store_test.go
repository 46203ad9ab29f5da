package queue

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/scrapequeue/shared/logger"
)

const testLease = 30 * time.Second

var jobColumns = []string{"id", "created_at", "updated_at", "status", "external_job_id"}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	return NewStore(db, Options{LeaseDuration: testLease}, logger.Discard()), mock
}

func TestNewStore_DefaultLease(t *testing.T) {
	store := NewStore(nil, Options{}, logger.Discard())
	assert.Equal(t, DefaultLeaseDuration, store.LeaseDuration())
}

func expectSetup(mock sqlmock.Sqlmock, exists bool) {
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(setupLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(TableName).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestStore_Setup(t *testing.T) {
	t.Run("creates schema once", func(t *testing.T) {
		store, mock := newTestStore(t)
		ctx := context.Background()

		expectSetup(mock, false)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS job_queue").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		expectSetup(mock, true)
		mock.ExpectRollback()

		created, err := store.Setup(ctx)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.Setup(ctx)
		require.NoError(t, err)
		assert.False(t, created)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock failure", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WillReturnError(errors.New("lock timeout"))
		mock.ExpectRollback()

		created, err := store.Setup(context.Background())
		require.ErrorIs(t, err, ErrStoreUnavailable)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		_, err := store.Setup(context.Background())
		require.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestStore_Push(t *testing.T) {
	tests := []struct {
		name    string
		jobID   string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name:  "inserts pending row",
			jobID: "7001",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO job_queue").
					WithArgs("7001").
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name:    "empty id",
			jobID:   "",
			setup:   func(mock sqlmock.Sqlmock) {},
			wantErr: ErrInvalidJobID,
		},
		{
			name:  "duplicate id",
			jobID: "7001",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO job_queue").
					WithArgs("7001").
					WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
			},
			wantErr: ErrDuplicateJob,
		},
		{
			name:  "connection lost",
			jobID: "7001",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO job_queue").
					WithArgs("7001").
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newTestStore(t)
			tt.setup(mock)

			err := store.Push(context.Background(), tt.jobID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_Pull(t *testing.T) {
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty queue", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
			WithArgs("pending", testLease.Milliseconds()).
			WillReturnRows(sqlmock.NewRows(jobColumns))
		mock.ExpectRollback()

		lease, err := store.Pull(context.Background())
		require.NoError(t, err)
		assert.Nil(t, lease)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("eligibility is lease age only", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`WHERE status = \$1\s+AND updated_at <= now\(\) - \(\$2::bigint \* interval '1 millisecond'\)\s+ORDER BY`).
			WithArgs("pending", testLease.Milliseconds()).
			WillReturnRows(sqlmock.NewRows(jobColumns))
		mock.ExpectRollback()

		lease, err := store.Pull(context.Background())
		require.NoError(t, err)
		assert.Nil(t, lease)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NotContains(t, pullSQL, "updated_at = created_at")
	})

	t.Run("returns leased job", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("ORDER BY random\\(\\)").
			WithArgs("pending", testLease.Milliseconds()).
			WillReturnRows(sqlmock.NewRows(jobColumns).AddRow(int64(7), created, created, "pending", "B"))

		lease, err := store.Pull(context.Background())
		require.NoError(t, err)
		require.NotNil(t, lease)

		job := lease.Job()
		assert.Equal(t, int64(7), job.ID)
		assert.Equal(t, "B", job.ExternalJobID)
		assert.Equal(t, StatusPending, job.Status)
		assert.True(t, job.NeverLeased())

		mock.ExpectRollback()
		require.NoError(t, lease.Release())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure rolls back", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
			WillReturnError(errors.New("canceling statement due to lock timeout"))
		mock.ExpectRollback()

		lease, err := store.Pull(context.Background())
		require.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Nil(t, lease)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

		_, err := store.Pull(context.Background())
		require.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestStore_Transitions(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	getRow := func(status string) *sqlmock.Rows {
		return sqlmock.NewRows(jobColumns).AddRow(int64(3), now, now, status, "D")
	}

	tests := []struct {
		name    string
		call    func(s *Store, ctx context.Context) error
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "touch pending",
			call: func(s *Store, ctx context.Context) error { return s.Touch(ctx, "D") },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET updated_at = GREATEST").
					WithArgs("D", "pending").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "touch complete is rejected",
			call: func(s *Store, ctx context.Context) error { return s.Touch(ctx, "D") },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET updated_at = GREATEST").
					WithArgs("D", "pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("WHERE external_job_id = \\$1").
					WithArgs("D").
					WillReturnRows(getRow("complete"))
			},
			wantErr: ErrJobTerminal,
		},
		{
			name: "complete pending",
			call: func(s *Store, ctx context.Context) error { return s.Complete(ctx, "D") },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET status = \\$1").
					WithArgs("complete", "D", "pending").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "complete twice is a no-op",
			call: func(s *Store, ctx context.Context) error { return s.Complete(ctx, "D") },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET status = \\$1").
					WithArgs("complete", "D", "pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("WHERE external_job_id = \\$1").
					WithArgs("D").
					WillReturnRows(getRow("complete"))
			},
		},
		{
			name: "complete deleted is rejected",
			call: func(s *Store, ctx context.Context) error { return s.Complete(ctx, "D") },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET status = \\$1").
					WithArgs("complete", "D", "pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("WHERE external_job_id = \\$1").
					WithArgs("D").
					WillReturnRows(getRow("deleted"))
			},
			wantErr: ErrJobTerminal,
		},
		{
			name: "delete complete is rejected",
			call: func(s *Store, ctx context.Context) error { return s.Delete(ctx, "D") },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET status = \\$1").
					WithArgs("deleted", "D", "pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("WHERE external_job_id = \\$1").
					WithArgs("D").
					WillReturnRows(getRow("complete"))
			},
			wantErr: ErrJobTerminal,
		},
		{
			name: "delete unknown job",
			call: func(s *Store, ctx context.Context) error { return s.Delete(ctx, "D") },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET status = \\$1").
					WithArgs("deleted", "D", "pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("WHERE external_job_id = \\$1").
					WithArgs("D").
					WillReturnRows(sqlmock.NewRows(jobColumns))
			},
			wantErr: ErrJobNotFound,
		},
		{
			name: "store unavailable",
			call: func(s *Store, ctx context.Context) error { return s.Delete(ctx, "D") },
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("SET status = \\$1").
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: ErrStoreUnavailable,
		},
		{
			name:    "empty id",
			call:    func(s *Store, ctx context.Context) error { return s.Complete(ctx, "") },
			setup:   func(mock sqlmock.Sqlmock) {},
			wantErr: ErrInvalidJobID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newTestStore(t)
			tt.setup(mock)

			err := tt.call(store, context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		current Status
		target  Status
		wantErr bool
	}{
		{StatusPending, StatusPending, false},
		{StatusComplete, StatusComplete, false},
		{StatusDeleted, StatusDeleted, false},
		{StatusComplete, StatusPending, true},
		{StatusDeleted, StatusPending, true},
		{StatusComplete, StatusDeleted, true},
		{StatusDeleted, StatusComplete, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"->"+string(tt.target), func(t *testing.T) {
			err := checkTransition(tt.current, tt.target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrJobTerminal)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStore_Get(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE external_job_id = \\$1").
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows(jobColumns).AddRow(int64(1), now, now.Add(time.Minute), "complete", "A"))

	job, err := store.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, job.Status)
	assert.False(t, job.NeverLeased())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no filters", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery("WHERE 1=1\\s+ORDER BY id DESC LIMIT \\$1").
			WithArgs(21).
			WillReturnRows(sqlmock.NewRows(jobColumns).
				AddRow(int64(2), now, now, "pending", "B").
				AddRow(int64(1), now, now, "pending", "A"))

		jobs, err := store.List(context.Background(), ListFilter{PageSize: 20})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "B", jobs[0].ExternalJobID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status and cursor", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery("AND status = \\$1 AND id < \\$2 ORDER BY id DESC LIMIT \\$3").
			WithArgs("deleted", int64(10), 6).
			WillReturnRows(sqlmock.NewRows(jobColumns))

		jobs, err := store.List(context.Background(), ListFilter{Status: StatusDeleted, BeforeID: 10, PageSize: 5})
		require.NoError(t, err)
		assert.Empty(t, jobs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_Stats(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", int64(3)).
			AddRow("complete", int64(1)))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[Status]int64{
		StatusPending:  3,
		StatusComplete: 1,
		StatusDeleted:  0,
	}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_StatusCounts(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("deleted", int64(2)))

	counts, err := store.StatusCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"pending": 0, "complete": 0, "deleted": 2}, counts)

	mock.ExpectQuery("GROUP BY status").WillReturnError(errors.New("connection reset"))

	_, err = store.StatusCounts(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
