package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Store is the PostgreSQL-backed queue. Claiming uses FOR UPDATE SKIP
// LOCKED so any number of workers can poll the same table.
type Store struct {
	db *sql.DB
}

// NewStore creates a Postgres job store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const insertJobSQL = `
	INSERT INTO jobs (id, kind, account_id, payload, run_at, status, attempts, max_attempts, created_at)
	VALUES ($1, $2, $3, $4, $5, 'queued', 0, $6, NOW())
`

// Enqueue inserts job in the queued state. A job with a DedupKey claims
// the key and inserts the row in one transaction; a key that is already
// taken returns ErrDuplicate and inserts nothing. Keys live in their own
// table so PurgeCompleted does not release them.
func (s *Store) Enqueue(ctx context.Context, job Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = MaxAttemptsFor(job.Kind)
	}
	if job.DedupKey == "" {
		_, err := s.db.ExecContext(ctx, insertJobSQL,
			job.ID, string(job.Kind), job.AccountID, []byte(job.Payload), job.RunAt, job.MaxAttempts)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO job_dedup_keys (dedup_key, job_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (dedup_key) DO NOTHING
	`, job.DedupKey, job.ID)
	if err != nil {
		return fmt.Errorf("claim dedup key: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("claim dedup key: %w", err)
	} else if n == 0 {
		return ErrDuplicate
	}

	if _, err := tx.ExecContext(ctx, insertJobSQL,
		job.ID, string(job.Kind), job.AccountID, []byte(job.Payload), job.RunAt, job.MaxAttempts); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enqueue: %w", err)
	}
	return nil
}

// Claim atomically takes up to limit due jobs for workerID and bumps their
// attempt counters.
func (s *Store) Claim(ctx context.Context, workerID string, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE jobs
		SET status = 'claimed', worker_id = $1, claimed_at = NOW(), attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = 'queued' AND run_at <= NOW()
			ORDER BY run_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, account_id, payload, run_at, attempts, max_attempts, created_at
	`, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var (
			j       Job
			kind    string
			payload []byte
		)
		if err := rows.Scan(&j.ID, &kind, &j.AccountID, &payload, &j.RunAt, &j.Attempts, &j.MaxAttempts, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Kind = Kind(kind)
		j.Payload = payload
		j.Status = StatusClaimed
		out = append(out, j)
	}
	return out, rows.Err()
}

// Complete marks a job done.
func (s *Store) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'done', completed_at = NOW(), worker_id = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// Fail records cause and either requeues the job for retryAt or moves it
// to dead_letter when it is exhausted or the error is permanent.
func (s *Store) Fail(ctx context.Context, job Job, cause error, retryAt time.Time) error {
	msg := ""
	if cause != nil {
		msg = truncate(cause.Error(), 2000)
	}

	var err error
	if job.Exhausted() || IsPermanent(cause) {
		_, err = s.db.ExecContext(ctx, `
			UPDATE jobs SET status = 'dead_letter', last_error = $2, worker_id = NULL, claimed_at = NULL
			WHERE id = $1
		`, job.ID, msg)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE jobs SET status = 'queued', run_at = $2, last_error = $3, worker_id = NULL, claimed_at = NULL
			WHERE id = $1
		`, job.ID, retryAt.UTC(), msg)
	}
	if err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	return nil
}

// RecoverStale requeues jobs claimed longer than staleAge ago by a worker
// that presumably died, and dead-letters those already out of attempts.
func (s *Store) RecoverStale(ctx context.Context, staleAge time.Duration) (requeued, dead int64, err error) {
	secs := staleAge.Seconds()

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'queued', worker_id = NULL, claimed_at = NULL
		WHERE status = 'claimed'
		  AND claimed_at < NOW() - make_interval(secs => $1)
		  AND attempts < max_attempts
	`, secs)
	if err != nil {
		return 0, 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	requeued, _ = res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'dead_letter', last_error = 'abandoned by worker', worker_id = NULL
		WHERE status = 'claimed'
		  AND claimed_at < NOW() - make_interval(secs => $1)
		  AND attempts >= max_attempts
	`, secs)
	if err != nil {
		return requeued, 0, fmt.Errorf("dead-letter stale jobs: %w", err)
	}
	dead, _ = res.RowsAffected()
	return requeued, dead, nil
}

// PurgeCompleted deletes done jobs older than age.
func (s *Store) PurgeCompleted(ctx context.Context, age time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status = 'done' AND completed_at < NOW() - make_interval(secs => $1)
	`, age.Seconds())
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return res.RowsAffected()
}

// truncate cuts s to at most n bytes without splitting a rune; last_error
// is TEXT and Postgres rejects invalid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
