// Package filestore is the pluggable File Store: postgres, gcs, and fs
// backends share the same Store interface so sync handlers never know
// which is mounted.
package filestore

import (
	"context"

	"github.com/driveindex/syncd/internal/domain"
)

// Store is the File Store contract. Upsert must be idempotent: applying
// the same descriptor twice is observationally identical to applying it
// once, modulo SyncedAt.
type Store interface {
	// Upsert writes fd, setting SyncedAt to now. Last write wins on
	// every field.
	Upsert(ctx context.Context, fd *domain.FileDescriptor) error

	Get(ctx context.Context, id string) (*domain.FileDescriptor, error)

	// Delete removes the descriptor unconditionally. Callers gate this
	// on DeletionPolicy; the store itself has no opinion.
	Delete(ctx context.Context, id string) error

	List(ctx context.Context) ([]*domain.FileDescriptor, error)
}

// MaxListConcurrency bounds the parallel fan-out used by the gcs and fs
// backends' List implementations (both cap at 20 to avoid overwhelming
// the backend or exhausting file descriptors).
const MaxListConcurrency = 20
