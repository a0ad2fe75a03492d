// Package jobstore implements the Job Store (JS): the durable record of
// work items, their states, history, and the dead-letter log.
package jobstore

import (
	"context"
	"time"

	"github.com/driveindex/syncd/internal/domain"
)

// CreateOptions carries the optional fields of Store.Create. A zero
// Priority means lowest priority; a zero MaxAttempts defaults to 1; a
// zero ScheduledAt means "eligible immediately".
type CreateOptions struct {
	Priority    int
	MaxAttempts int
	ScheduledAt time.Time
}

// Stats is the per-status job count plus dead-letter size returned by
// Store.Stats.
type Stats struct {
	Pending        int
	Running        int
	Completed      int
	Failed         int
	Dead           int
	DeadLetterSize int
}

// Store is the Job Store contract. Implementations must perform every
// state transition atomically; the transitions documented on the methods
// below are the only legal ones.
type Store interface {
	// Create inserts a new pending job and returns its id.
	Create(ctx context.Context, jobType string, payload []byte, opts CreateOptions) (string, error)

	FindByID(ctx context.Context, id string) (*domain.Job, error)

	// FindPending returns up to limit jobs eligible for dispatch: status
	// = pending and scheduled_at <= now, ordered priority DESC,
	// created_at ASC.
	FindPending(ctx context.Context, limit int) ([]*domain.Job, error)

	FindByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error)

	// MarkRunning transitions pending -> running: attempts++, started_at
	// = now.
	MarkRunning(ctx context.Context, id string) error

	// MarkCompleted transitions running -> completed: completed_at = now.
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed transitions running -> failed (attempts < max_attempts)
	// or running -> dead with a dead-letter insert (attempts >=
	// max_attempts), atomically. Returns the resulting status.
	MarkFailed(ctx context.Context, id string, errMsg string) (domain.JobStatus, error)

	// Reschedule transitions failed -> pending: scheduled_at = now +
	// delay.
	Reschedule(ctx context.Context, id string, delay time.Duration) error

	DeadLetterJobs(ctx context.Context, limit int) ([]*domain.DeadLetterEntry, error)

	// RetryDeadJob transitions dead -> pending: deletes the dead-letter
	// row, attempts = 0, last_error cleared, scheduled_at = now.
	RetryDeadJob(ctx context.Context, deadLetterID string) (jobID string, err error)

	Stats(ctx context.Context) (Stats, error)

	// ForceDead transitions running -> dead unconditionally (bypassing the
	// attempts-vs-max_attempts check MarkFailed applies), appending a
	// dead-letter row atomically. Used for Fatal errors that must never
	// consume a retry (e.g. panic recovery).
	ForceDead(ctx context.Context, id string, errMsg string) error

	// ReclaimStale resets every running job whose started_at is older than
	// olderThan back to pending, for JR's startup recovery pass. Returns
	// the count reclaimed.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}
