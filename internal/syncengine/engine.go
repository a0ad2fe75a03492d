// Package syncengine implements the Sync Engine (SE): translates user
// intents (full sync, incremental sync, resume, pause) into job
// submissions and queries checkpoint state for status.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/driveindex/syncd/internal/checkpointstore"
	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/eventbus"
	"github.com/driveindex/syncd/internal/jobstore"
	"github.com/driveindex/syncd/internal/jsonenc"
)

// Default retry budgets for the two job types SE enqueues. full_sync's
// budget is fixed at 3; incremental_sync's is left unspecified upstream,
// so this module follows the same value for consistency.
const (
	FullSyncMaxAttempts        = 3
	IncrementalSyncMaxAttempts = 3

	FullSyncPriority        = 10
	IncrementalSyncPriority = 5
)

// fullSyncPayload is the job payload enqueued for the full_sync handler.
type fullSyncPayload struct {
	SyncID     string  `json:"sync_id"`
	ResumeFrom *string `json:"resume_from,omitempty"`
}

// incrementalSyncPayload is the job payload enqueued for the
// incremental_sync handler.
type incrementalSyncPayload struct {
	SyncID         string `json:"sync_id"`
	StartPageToken string `json:"start_page_token"`
}

// Engine is the Sync Engine (SE). Its only mutable state is the cached
// incremental-sync start cursor: if none is cached in SE memory, fetch
// one from PC.
type Engine struct {
	js       jobstore.Store
	cs       checkpointstore.Store
	pc       ProviderClient
	bus      *eventbus.Bus
	pageSize int

	mu              sync.Mutex
	startCursor     string
	haveStartCursor bool
}

// New constructs an Engine.
func New(js jobstore.Store, cs checkpointstore.Store, pc ProviderClient, bus *eventbus.Bus, pageSize int) *Engine {
	return &Engine{js: js, cs: cs, pc: pc, bus: bus, pageSize: pageSize}
}

// StartFullSync attaches to an existing in_progress checkpoint via
// ResumeSync instead of starting a new one (restart-safe behaviour).
// Otherwise it creates a fresh checkpoint and enqueues a full_sync job.
func (e *Engine) StartFullSync(ctx context.Context) (string, error) {
	existing, err := e.cs.FindLatestInProgress(ctx)
	if err == nil {
		return existing.SyncID, e.ResumeSync(ctx, existing.SyncID)
	}
	if !errors.Is(err, domain.ErrCheckpointNotFound) {
		return "", fmt.Errorf("check for in-progress checkpoint: %w", err)
	}

	syncID := uuid.NewString()
	if _, err := e.cs.Create(ctx, syncID); err != nil {
		return "", fmt.Errorf("create checkpoint: %w", err)
	}

	payload, err := jsonenc.Marshal(fullSyncPayload{SyncID: syncID})
	if err != nil {
		return "", fmt.Errorf("marshal full sync payload: %w", err)
	}
	if _, err := e.js.Create(ctx, "full_sync", payload, jobstore.CreateOptions{
		Priority:    FullSyncPriority,
		MaxAttempts: FullSyncMaxAttempts,
	}); err != nil {
		return "", fmt.Errorf("enqueue full sync job: %w", err)
	}

	e.bus.Publish(eventbus.Event{Kind: eventbus.SyncStarted, SyncID: syncID})
	return syncID, nil
}

// StartIncrementalSync fetches a start cursor from PC if none is cached
// yet, creates a checkpoint, and enqueues an incremental_sync job.
func (e *Engine) StartIncrementalSync(ctx context.Context) (string, error) {
	startToken, err := e.cachedStartCursor(ctx)
	if err != nil {
		return "", err
	}

	syncID := uuid.NewString()
	if _, err := e.cs.Create(ctx, syncID); err != nil {
		return "", fmt.Errorf("create checkpoint: %w", err)
	}

	payload, err := jsonenc.Marshal(incrementalSyncPayload{SyncID: syncID, StartPageToken: startToken})
	if err != nil {
		return "", fmt.Errorf("marshal incremental sync payload: %w", err)
	}
	if _, err := e.js.Create(ctx, "incremental_sync", payload, jobstore.CreateOptions{
		Priority:    IncrementalSyncPriority,
		MaxAttempts: IncrementalSyncMaxAttempts,
	}); err != nil {
		return "", fmt.Errorf("enqueue incremental sync job: %w", err)
	}

	e.bus.Publish(eventbus.Event{Kind: eventbus.SyncStarted, SyncID: syncID})
	return syncID, nil
}

func (e *Engine) cachedStartCursor(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.haveStartCursor {
		cached := e.startCursor
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	cursor, err := e.pc.StartCursor(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch start cursor: %w", err)
	}

	e.mu.Lock()
	e.startCursor = cursor
	e.haveStartCursor = true
	e.mu.Unlock()
	return cursor, nil
}

// ResumeSync refuses if the checkpoint is completed; otherwise it flips
// the checkpoint to in_progress and enqueues a fresh full_sync job. The
// handler observes the stored page_token in CS and continues from there;
// resume_from in the payload is advisory only.
func (e *Engine) ResumeSync(ctx context.Context, syncID string) error {
	cp, err := e.cs.FindBySyncID(ctx, syncID)
	if err != nil {
		return fmt.Errorf("find checkpoint: %w", err)
	}
	if cp.Status == domain.CheckpointCompleted {
		return PolicyError{Op: "resume_sync", SyncID: syncID, Reason: "checkpoint already completed"}
	}

	if err := e.cs.Resume(ctx, cp.ID); err != nil {
		return fmt.Errorf("resume checkpoint: %w", err)
	}

	payload, err := jsonenc.Marshal(fullSyncPayload{SyncID: syncID, ResumeFrom: cp.PageToken})
	if err != nil {
		return fmt.Errorf("marshal resume payload: %w", err)
	}
	if _, err := e.js.Create(ctx, "full_sync", payload, jobstore.CreateOptions{
		Priority:    FullSyncPriority,
		MaxAttempts: FullSyncMaxAttempts,
	}); err != nil {
		return fmt.Errorf("enqueue resume job: %w", err)
	}

	e.bus.Publish(eventbus.Event{Kind: eventbus.SyncResumed, SyncID: syncID})
	return nil
}

// PauseSync flips the checkpoint to paused. The currently running job is
// not interrupted; pause takes effect on the next sync start.
func (e *Engine) PauseSync(ctx context.Context, syncID string) error {
	cp, err := e.cs.FindBySyncID(ctx, syncID)
	if err != nil {
		return fmt.Errorf("find checkpoint: %w", err)
	}
	if err := e.cs.Pause(ctx, cp.ID); err != nil {
		return fmt.Errorf("pause checkpoint: %w", err)
	}
	e.bus.Publish(eventbus.Event{Kind: eventbus.SyncPaused, SyncID: syncID})
	return nil
}

// DeleteSync refuses if the checkpoint is in_progress; otherwise removes
// the checkpoint row.
func (e *Engine) DeleteSync(ctx context.Context, syncID string) error {
	cp, err := e.cs.FindBySyncID(ctx, syncID)
	if err != nil {
		return fmt.Errorf("find checkpoint: %w", err)
	}
	if cp.Status == domain.CheckpointInProgress {
		return PolicyError{Op: "delete_sync", SyncID: syncID, Reason: "checkpoint is in progress"}
	}
	if err := e.cs.Delete(ctx, syncID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	e.bus.Publish(eventbus.Event{Kind: eventbus.SyncDeleted, SyncID: syncID})
	return nil
}

func (e *Engine) GetStatus(ctx context.Context, syncID string) (*domain.Checkpoint, error) {
	return e.cs.FindBySyncID(ctx, syncID)
}

func (e *Engine) GetCurrentSync(ctx context.Context) (*domain.Checkpoint, error) {
	return e.cs.FindLatestInProgress(ctx)
}

func (e *Engine) GetSyncHistory(ctx context.Context, limit int) ([]*domain.Checkpoint, error) {
	return e.cs.GetHistory(ctx, limit)
}
