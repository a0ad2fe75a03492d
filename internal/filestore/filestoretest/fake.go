// Package filestoretest provides an in-memory filestore.Store for SE/JR
// tests.
package filestoretest

import (
	"context"
	"sync"
	"time"

	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/filestore"
)

// Fake is an in-memory filestore.Store.
type Fake struct {
	mu   sync.Mutex
	byID map[string]*domain.FileDescriptor
}

// New constructs an empty Fake.
func New() *Fake {
	return &Fake{byID: make(map[string]*domain.FileDescriptor)}
}

func (f *Fake) Upsert(ctx context.Context, fd *domain.FileDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	clone := *fd
	clone.SyncedAt = time.Now().UTC()
	f.byID[fd.ID] = &clone
	return nil
}

func (f *Fake) Get(ctx context.Context, id string) (*domain.FileDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fd, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrFileNotFound
	}
	clone := *fd
	return &clone, nil
}

func (f *Fake) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byID[id]; !ok {
		return domain.ErrFileNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *Fake) List(ctx context.Context) ([]*domain.FileDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*domain.FileDescriptor, 0, len(f.byID))
	for _, fd := range f.byID {
		clone := *fd
		out = append(out, &clone)
	}
	return out, nil
}

var _ filestore.Store = (*Fake)(nil)
