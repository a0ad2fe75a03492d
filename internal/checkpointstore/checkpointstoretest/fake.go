// Package checkpointstoretest provides an in-memory checkpointstore.Store
// for SE/JR tests.
package checkpointstoretest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/driveindex/syncd/internal/checkpointstore"
	"github.com/driveindex/syncd/internal/domain"
)

// Fake is an in-memory checkpointstore.Store.
type Fake struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[string]*domain.Checkpoint
	bySync  map[string]string
}

// New constructs an empty Fake.
func New() *Fake {
	return &Fake{byID: make(map[string]*domain.Checkpoint), bySync: make(map[string]string)}
}

func (f *Fake) Create(ctx context.Context, syncID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := strconv.FormatInt(f.nextID, 10)
	now := time.Now().UTC()
	f.byID[id] = &domain.Checkpoint{
		ID:        id,
		SyncID:    syncID,
		Status:    domain.CheckpointInProgress,
		StartedAt: now,
		UpdatedAt: now,
	}
	f.bySync[syncID] = id
	return id, nil
}

func (f *Fake) FindBySyncID(ctx context.Context, syncID string) (*domain.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.bySync[syncID]
	if !ok {
		return nil, domain.ErrCheckpointNotFound
	}
	return clone(f.byID[id]), nil
}

func (f *Fake) FindLatestInProgress(ctx context.Context) (*domain.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var latest *domain.Checkpoint
	var latestID int64
	for id, cp := range f.byID {
		if cp.Status != domain.CheckpointInProgress {
			continue
		}
		n, _ := strconv.ParseInt(id, 10, 64)
		if latest == nil || n > latestID {
			latest = cp
			latestID = n
		}
	}
	if latest == nil {
		return nil, domain.ErrCheckpointNotFound
	}
	return clone(latest), nil
}

func (f *Fake) UpdateProgress(ctx context.Context, id string, pageToken *string, filesProcessed int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp, ok := f.byID[id]
	if !ok {
		return domain.ErrCheckpointNotFound
	}
	cp.PageToken = pageToken
	cp.FilesProcessed = filesProcessed
	cp.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *Fake) MarkCompleted(ctx context.Context, id string, filesProcessed int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp, ok := f.byID[id]
	if !ok {
		return domain.ErrCheckpointNotFound
	}
	now := time.Now().UTC()
	cp.Status = domain.CheckpointCompleted
	cp.FilesProcessed = filesProcessed
	cp.CompletedAt = &now
	cp.UpdatedAt = now
	return nil
}

func (f *Fake) MarkFailed(ctx context.Context, id string, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp, ok := f.byID[id]
	if !ok {
		return domain.ErrCheckpointNotFound
	}
	cp.Status = domain.CheckpointFailed
	cp.ErrorMessage = errMsg
	cp.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *Fake) Pause(ctx context.Context, id string) error {
	return f.setStatus(id, domain.CheckpointPaused)
}

func (f *Fake) Resume(ctx context.Context, id string) error {
	return f.setStatus(id, domain.CheckpointInProgress)
}

func (f *Fake) setStatus(id string, status domain.CheckpointStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp, ok := f.byID[id]
	if !ok {
		return domain.ErrCheckpointNotFound
	}
	cp.Status = status
	cp.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *Fake) Delete(ctx context.Context, syncID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.bySync[syncID]
	if !ok {
		return domain.ErrCheckpointNotFound
	}
	delete(f.byID, id)
	delete(f.bySync, syncID)
	return nil
}

func (f *Fake) GetHistory(ctx context.Context, limit int) ([]*domain.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int64, 0, len(f.byID))
	for id := range f.byID {
		n, _ := strconv.ParseInt(id, 10, 64)
		ids = append(ids, n)
	}
	sortDesc(ids)

	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*domain.Checkpoint, len(ids))
	for i, n := range ids {
		out[i] = clone(f.byID[strconv.FormatInt(n, 10)])
	}
	return out, nil
}

func sortDesc(xs []int64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] < xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func clone(cp *domain.Checkpoint) *domain.Checkpoint {
	c := *cp
	return &c
}

var _ checkpointstore.Store = (*Fake)(nil)
