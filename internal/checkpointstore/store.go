// Package checkpointstore implements the Checkpoint Store (CS): durable
// per-sync progress markers.
package checkpointstore

import (
	"context"

	"github.com/driveindex/syncd/internal/domain"
)

// Store is the Checkpoint Store contract.
type Store interface {
	Create(ctx context.Context, syncID string) (id string, err error)

	FindBySyncID(ctx context.Context, syncID string) (*domain.Checkpoint, error)

	// FindLatestInProgress returns the most recently created in_progress
	// checkpoint, never a completed one.
	FindLatestInProgress(ctx context.Context) (*domain.Checkpoint, error)

	UpdateProgress(ctx context.Context, id string, pageToken *string, filesProcessed int64) error

	MarkCompleted(ctx context.Context, id string, filesProcessed int64) error

	MarkFailed(ctx context.Context, id string, errMsg string) error

	Pause(ctx context.Context, id string) error

	Resume(ctx context.Context, id string) error

	Delete(ctx context.Context, syncID string) error

	// GetHistory returns the most recent checkpoints first, by surrogate
	// id.
	GetHistory(ctx context.Context, limit int) ([]*domain.Checkpoint, error)
}
