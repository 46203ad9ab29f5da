package queue

// TableName is the queue table
const TableName = "job_queue"

// setupLockKey is the advisory lock id taken while creating the schema
const setupLockKey int64 = 0x7363726170 // "scrap"

const uniqueViolation = "23505"

const setupLockSQL = `SELECT pg_advisory_xact_lock($1)`

const tableExistsSQL = `
	SELECT EXISTS (
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		  AND table_type = 'BASE TABLE'
		  AND table_name = $1
	)
`

const createSchemaSQL = `
	CREATE TABLE IF NOT EXISTS job_queue (
		id              BIGSERIAL PRIMARY KEY,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		status          VARCHAR(16) NOT NULL DEFAULT 'pending'
		                CHECK (status IN ('pending', 'complete', 'deleted')),
		external_job_id VARCHAR(255) NOT NULL UNIQUE
	);
	CREATE INDEX IF NOT EXISTS job_queue_status_updated_at_idx
		ON job_queue (status, updated_at);
`

// created_at and updated_at share now(); a fresh row waits one lease before its first pull
const pushSQL = `
	INSERT INTO job_queue (external_job_id, status, created_at, updated_at)
	VALUES ($1, 'pending', now(), now())
`

// A pending row is eligible once its lease expired, fresh rows included, so a
// rolled back cycle never hands the same row out again before the lease ends.
// SKIP LOCKED makes concurrent pulls pass over rows held by another lease.
const pullSQL = `
	SELECT id, created_at, updated_at, status, external_job_id
	FROM job_queue
	WHERE status = $1
	  AND updated_at <= now() - ($2::bigint * interval '1 millisecond')
	ORDER BY random()
	LIMIT 1
	FOR UPDATE SKIP LOCKED
`

// Lease writes use the wall clock at write time; updated_at must strictly
// increase even within one clock tick.
const touchSQL = `
	UPDATE job_queue
	SET updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')
	WHERE external_job_id = $1 AND status = $2
`

const statusSQL = `
	UPDATE job_queue
	SET status = $1,
	    updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')
	WHERE external_job_id = $2 AND status = $3
`

const leaseTouchSQL = `
	UPDATE job_queue
	SET updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')
	WHERE id = $1 AND status = $2
	RETURNING updated_at
`

const leaseStatusSQL = `
	UPDATE job_queue
	SET status = $1,
	    updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')
	WHERE id = $2 AND status = $3
	RETURNING updated_at
`

const getSQL = `
	SELECT id, created_at, updated_at, status, external_job_id
	FROM job_queue
	WHERE external_job_id = $1
`

const statsSQL = `
	SELECT status, COUNT(*) AS count
	FROM job_queue
	GROUP BY status
`
