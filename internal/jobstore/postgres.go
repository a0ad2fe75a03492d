package jobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driveindex/syncd/internal/domain"
)

// PostgresStore is the pgxpool-backed Store implementation. It hand-writes
// SQL directly against pgxpool.Pool (no generated-code layer), grounded
// on the transaction/ownership-checked-update idiom in
// internal/infrastructure/persistence/postgres/coordinator.go.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore over an already-migrated
// pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, jobType string, payload []byte, opts CreateOptions) (string, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	scheduledAt := opts.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now().UTC()
	}

	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, type, payload, status, priority, max_attempts, scheduled_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6)
	`, id, jobType, payload, opts.Priority, maxAttempts, scheduledAt)
	if err != nil {
		slog.ErrorContext(ctx, "failed to insert job", slog.String("job_type", jobType), slog.String("error", err.Error()))
		return "", fmt.Errorf("insert job: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, jobSelectColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) FindPending(ctx context.Context, limit int) ([]*domain.Job, error) {
	rows, err := s.pool.Query(ctx, jobSelectColumns+`
		FROM jobs
		WHERE status = 'pending' AND scheduled_at <= now()
		ORDER BY priority DESC, created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("find pending jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *PostgresStore) FindByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error) {
	rows, err := s.pool.Query(ctx, jobSelectColumns+`
		FROM jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("find jobs by status: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *PostgresStore) MarkRunning(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'running', attempts = attempts + 1, started_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidStateTransition
	}
	return nil
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, id)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidStateTransition
	}
	return nil
}

// MarkFailed performs the combined failed/dead transition: the
// dead-letter insert (when attempts have been exhausted) is committed
// atomically with the status flip, within a single transaction.
func (s *PostgresStore) MarkFailed(ctx context.Context, id string, errMsg string) (domain.JobStatus, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin mark failed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var jobType string
	var payload []byte
	var attempts, maxAttempts int
	err = tx.QueryRow(ctx, `
		SELECT type, payload, attempts, max_attempts FROM jobs WHERE id = $1 AND status = 'running' FOR UPDATE
	`, id).Scan(&jobType, &payload, &attempts, &maxAttempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrInvalidStateTransition
	}
	if err != nil {
		return "", fmt.Errorf("lock job for mark failed: %w", err)
	}

	if attempts < maxAttempts {
		if _, err := tx.Exec(ctx, `
			UPDATE jobs SET status = 'failed', last_error = $2, updated_at = now() WHERE id = $1
		`, id, errMsg); err != nil {
			return "", fmt.Errorf("mark failed: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return "", fmt.Errorf("commit mark failed: %w", err)
		}
		return domain.JobFailed, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE jobs SET status = 'dead', last_error = $2, updated_at = now() WHERE id = $1
	`, id, errMsg); err != nil {
		return "", fmt.Errorf("mark dead: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO dead_letter_queue (id, job_id, job_type, payload, error_message)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), id, jobType, payload, errMsg); err != nil {
		return "", fmt.Errorf("insert dead letter entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit mark dead: %w", err)
	}
	slog.WarnContext(ctx, "job moved to dead letter queue", slog.String("job_id", id), slog.String("job_type", jobType))
	return domain.JobDead, nil
}

func (s *PostgresStore) Reschedule(ctx context.Context, id string, delay time.Duration) error {
	scheduledAt := time.Now().UTC().Add(delay)
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending', scheduled_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'failed'
	`, id, scheduledAt)
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidStateTransition
	}
	return nil
}

func (s *PostgresStore) DeadLetterJobs(ctx context.Context, limit int) ([]*domain.DeadLetterEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, job_type, payload, error_message, failed_at
		FROM dead_letter_queue ORDER BY failed_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("find dead letter entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.DeadLetterEntry
	for rows.Next() {
		var e domain.DeadLetterEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.JobType, &e.Payload, &e.ErrorMessage, &e.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) RetryDeadJob(ctx context.Context, deadLetterID string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin retry dead job transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var jobID string
	err = tx.QueryRow(ctx, `
		SELECT job_id FROM dead_letter_queue WHERE id = $1
	`, deadLetterID).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrDeadLetterEntryNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find dead letter entry: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, deadLetterID); err != nil {
		return "", fmt.Errorf("delete dead letter entry: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending', attempts = 0, last_error = '', scheduled_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'dead'
	`, jobID)
	if err != nil {
		return "", fmt.Errorf("reinstate job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", domain.ErrInvalidStateTransition
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit retry dead job: %w", err)
	}
	return jobID, nil
}

// ForceDead transitions running -> dead unconditionally, for Fatal errors
// that must never consume a retry (e.g. a handler panic).
func (s *PostgresStore) ForceDead(ctx context.Context, id string, errMsg string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin force dead transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var jobType string
	var payload []byte
	err = tx.QueryRow(ctx, `
		SELECT type, payload FROM jobs WHERE id = $1 AND status = 'running' FOR UPDATE
	`, id).Scan(&jobType, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrInvalidStateTransition
	}
	if err != nil {
		return fmt.Errorf("lock job for force dead: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE jobs SET status = 'dead', last_error = $2, updated_at = now() WHERE id = $1
	`, id, errMsg); err != nil {
		return fmt.Errorf("mark dead: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO dead_letter_queue (id, job_id, job_type, payload, error_message)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), id, jobType, payload, errMsg); err != nil {
		return fmt.Errorf("insert dead letter entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit force dead: %w", err)
	}
	slog.WarnContext(ctx, "job force-dead-lettered", slog.String("job_id", id), slog.String("job_type", jobType))
	return nil
}

// ReclaimStale resets running jobs stuck past olderThan back to pending,
// for the startup recovery pass.
func (s *PostgresStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending', started_at = NULL, updated_at = now()
		WHERE status = 'running' AND started_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("query job stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan job stats: %w", err)
		}
		switch domain.JobStatus(status) {
		case domain.JobPending:
			stats.Pending = count
		case domain.JobRunning:
			stats.Running = count
		case domain.JobCompleted:
			stats.Completed = count
		case domain.JobFailed:
			stats.Failed = count
		case domain.JobDead:
			stats.Dead = count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM dead_letter_queue`).Scan(&stats.DeadLetterSize); err != nil {
		return Stats{}, fmt.Errorf("query dead letter size: %w", err)
	}

	return stats, nil
}

const jobSelectColumns = `SELECT id, type, payload, status, priority, attempts, max_attempts, last_error,
	created_at, updated_at, scheduled_at, started_at, completed_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*domain.Job, error) {
	var j domain.Job
	var status string
	if err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &status, &j.Priority, &j.Attempts, &j.MaxAttempts, &j.LastError,
		&j.CreatedAt, &j.UpdatedAt, &j.ScheduledAt, &j.StartedAt, &j.CompletedAt,
	); err != nil {
		return nil, err
	}
	j.Status = domain.JobStatus(status)
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
