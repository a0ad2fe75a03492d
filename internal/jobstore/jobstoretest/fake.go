// Package jobstoretest provides an in-memory jobstore.Store for tests of
// JR and SE. It's a real in-memory store, not per-call stubs, since the
// exact state transitions are themselves under test in multiple packages.
package jobstoretest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/jobstore"
)

// Fake is an in-memory jobstore.Store.
type Fake struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	deadLetters map[string]*domain.DeadLetterEntry
}

// New constructs an empty Fake.
func New() *Fake {
	return &Fake{
		jobs:        make(map[string]*domain.Job),
		deadLetters: make(map[string]*domain.DeadLetterEntry),
	}
}

func (f *Fake) Create(ctx context.Context, jobType string, payload []byte, opts jobstore.CreateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	scheduledAt := opts.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	f.jobs[id] = &domain.Job{
		ID:          id,
		Type:        jobType,
		Payload:     append([]byte(nil), payload...),
		Status:      domain.JobPending,
		Priority:    opts.Priority,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
		ScheduledAt: scheduledAt,
	}
	return id, nil
}

func (f *Fake) FindByID(ctx context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return cloneJob(j), nil
}

func (f *Fake) FindPending(ctx context.Context, limit int) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	var eligible []*domain.Job
	for _, j := range f.jobs {
		if j.Status == domain.JobPending && !j.ScheduledAt.After(now) {
			eligible = append(eligible, j)
		}
	}

	sort.Slice(eligible, func(i, k int) bool {
		if eligible[i].Priority != eligible[k].Priority {
			return eligible[i].Priority > eligible[k].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[k].CreatedAt)
	})

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	out := make([]*domain.Job, len(eligible))
	for i, j := range eligible {
		out[i] = cloneJob(j)
	}
	return out, nil
}

func (f *Fake) FindByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*domain.Job
	for _, j := range f.jobs {
		if j.Status == status {
			matched = append(matched, j)
		}
	}
	sort.Slice(matched, func(i, k int) bool { return matched[i].CreatedAt.Before(matched[k].CreatedAt) })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*domain.Job, len(matched))
	for i, j := range matched {
		out[i] = cloneJob(j)
	}
	return out, nil
}

func (f *Fake) MarkRunning(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[id]
	if !ok || j.Status != domain.JobPending {
		return domain.ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	j.Status = domain.JobRunning
	j.Attempts++
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

func (f *Fake) MarkCompleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[id]
	if !ok || j.Status != domain.JobRunning {
		return domain.ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	j.Status = domain.JobCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

func (f *Fake) MarkFailed(ctx context.Context, id string, errMsg string) (domain.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[id]
	if !ok || j.Status != domain.JobRunning {
		return "", domain.ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	j.LastError = errMsg
	j.UpdatedAt = now

	if j.Attempts < j.MaxAttempts {
		j.Status = domain.JobFailed
		return domain.JobFailed, nil
	}

	j.Status = domain.JobDead
	entryID := uuid.NewString()
	f.deadLetters[entryID] = &domain.DeadLetterEntry{
		ID:           entryID,
		JobID:        j.ID,
		JobType:      j.Type,
		Payload:      append([]byte(nil), j.Payload...),
		ErrorMessage: errMsg,
		FailedAt:     now,
	}
	return domain.JobDead, nil
}

func (f *Fake) Reschedule(ctx context.Context, id string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[id]
	if !ok || j.Status != domain.JobFailed {
		return domain.ErrInvalidStateTransition
	}
	j.Status = domain.JobPending
	j.ScheduledAt = time.Now().UTC().Add(delay)
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *Fake) DeadLetterJobs(ctx context.Context, limit int) ([]*domain.DeadLetterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entries []*domain.DeadLetterEntry
	for _, e := range f.deadLetters {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, k int) bool { return entries[i].FailedAt.After(entries[k].FailedAt) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *Fake) RetryDeadJob(ctx context.Context, deadLetterID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.deadLetters[deadLetterID]
	if !ok {
		return "", domain.ErrDeadLetterEntryNotFound
	}
	j, ok := f.jobs[entry.JobID]
	if !ok || j.Status != domain.JobDead {
		return "", domain.ErrInvalidStateTransition
	}

	delete(f.deadLetters, deadLetterID)
	j.Status = domain.JobPending
	j.Attempts = 0
	j.LastError = ""
	j.ScheduledAt = time.Now().UTC()
	j.UpdatedAt = time.Now().UTC()
	return j.ID, nil
}

func (f *Fake) Stats(ctx context.Context) (jobstore.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s jobstore.Stats
	for _, j := range f.jobs {
		switch j.Status {
		case domain.JobPending:
			s.Pending++
		case domain.JobRunning:
			s.Running++
		case domain.JobCompleted:
			s.Completed++
		case domain.JobFailed:
			s.Failed++
		case domain.JobDead:
			s.Dead++
		}
	}
	s.DeadLetterSize = len(f.deadLetters)
	return s, nil
}

func (f *Fake) ForceDead(ctx context.Context, id string, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[id]
	if !ok || j.Status != domain.JobRunning {
		return domain.ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	j.Status = domain.JobDead
	j.LastError = errMsg
	j.UpdatedAt = now

	entryID := uuid.NewString()
	f.deadLetters[entryID] = &domain.DeadLetterEntry{
		ID:           entryID,
		JobID:        j.ID,
		JobType:      j.Type,
		Payload:      append([]byte(nil), j.Payload...),
		ErrorMessage: errMsg,
		FailedAt:     now,
	}
	return nil
}

func (f *Fake) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	count := 0
	for _, j := range f.jobs {
		if j.Status == domain.JobRunning && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			j.Status = domain.JobPending
			j.StartedAt = nil
			j.UpdatedAt = time.Now().UTC()
			count++
		}
	}
	return count, nil
}

func cloneJob(j *domain.Job) *domain.Job {
	clone := *j
	clone.Payload = append([]byte(nil), j.Payload...)
	return &clone
}

var _ jobstore.Store = (*Fake)(nil)
