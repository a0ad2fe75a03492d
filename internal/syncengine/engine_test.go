package syncengine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveindex/syncd/internal/checkpointstore/checkpointstoretest"
	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/eventbus"
	"github.com/driveindex/syncd/internal/jobstore/jobstoretest"
	"github.com/driveindex/syncd/internal/provider"
	"github.com/driveindex/syncd/internal/syncengine"
)

// fakePC is a canned in-memory ProviderClient for SE/handler tests.
type fakePC struct {
	mu              sync.Mutex
	descriptorPages map[string]*provider.ListDescriptorsResponse
	changePages     map[string]*provider.ListChangesResponse
	startCursor     string
	startCursorErr  error
}

func (f *fakePC) ListDescriptors(ctx context.Context, pageToken string, pageSize int) (*provider.ListDescriptorsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.descriptorPages[pageToken], nil
}

func (f *fakePC) ListChanges(ctx context.Context, pageToken string, pageSize int) (*provider.ListChangesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changePages[pageToken], nil
}

func (f *fakePC) StartCursor(ctx context.Context) (string, error) {
	return f.startCursor, f.startCursorErr
}

func TestEngine_StartFullSync_CreatesCheckpointAndJob(t *testing.T) {
	ctx := context.Background()
	js := jobstoretest.New()
	cs := checkpointstoretest.New()
	pc := &fakePC{}
	bus := eventbus.New()
	e := syncengine.New(js, cs, pc, bus, 100)

	syncID, err := e.StartFullSync(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, syncID)

	cp, err := cs.FindBySyncID(ctx, syncID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckpointInProgress, cp.Status)

	jobs, err := js.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "full_sync", jobs[0].Type)
	assert.Equal(t, syncengine.FullSyncPriority, jobs[0].Priority)
}

func TestEngine_StartFullSync_AttachesToExistingInProgress(t *testing.T) {
	ctx := context.Background()
	js := jobstoretest.New()
	cs := checkpointstoretest.New()
	pc := &fakePC{}
	bus := eventbus.New()
	e := syncengine.New(js, cs, pc, bus, 100)

	first, err := e.StartFullSync(ctx)
	require.NoError(t, err)

	second, err := e.StartFullSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	jobs, err := js.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 2, "resume enqueues its own fresh full_sync job")
}

func TestEngine_ResumeSync_RefusesCompleted(t *testing.T) {
	ctx := context.Background()
	js := jobstoretest.New()
	cs := checkpointstoretest.New()
	pc := &fakePC{}
	bus := eventbus.New()
	e := syncengine.New(js, cs, pc, bus, 100)

	id, err := cs.Create(ctx, "sync-1")
	require.NoError(t, err)
	require.NoError(t, cs.MarkCompleted(ctx, id, 5))

	err = e.ResumeSync(ctx, "sync-1")
	require.Error(t, err)
	var policyErr syncengine.PolicyError
	require.ErrorAs(t, err, &policyErr)
}

func TestEngine_DeleteSync_RefusesInProgress(t *testing.T) {
	ctx := context.Background()
	js := jobstoretest.New()
	cs := checkpointstoretest.New()
	pc := &fakePC{}
	bus := eventbus.New()
	e := syncengine.New(js, cs, pc, bus, 100)

	syncID, err := e.StartFullSync(ctx)
	require.NoError(t, err)

	err = e.DeleteSync(ctx, syncID)
	require.Error(t, err)
	var policyErr syncengine.PolicyError
	require.ErrorAs(t, err, &policyErr)
}

func TestEngine_PauseThenDeleteSucceeds(t *testing.T) {
	ctx := context.Background()
	js := jobstoretest.New()
	cs := checkpointstoretest.New()
	pc := &fakePC{}
	bus := eventbus.New()
	e := syncengine.New(js, cs, pc, bus, 100)

	syncID, err := e.StartFullSync(ctx)
	require.NoError(t, err)

	require.NoError(t, e.PauseSync(ctx, syncID))
	cp, err := e.GetStatus(ctx, syncID)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckpointPaused, cp.Status)

	require.NoError(t, e.DeleteSync(ctx, syncID))
	_, err = e.GetStatus(ctx, syncID)
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
}

func TestEngine_StartIncrementalSync_CachesStartCursor(t *testing.T) {
	ctx := context.Background()
	js := jobstoretest.New()
	cs := checkpointstoretest.New()
	pc := &fakePC{startCursor: "cursor-1"}
	bus := eventbus.New()
	e := syncengine.New(js, cs, pc, bus, 100)

	_, err := e.StartIncrementalSync(ctx)
	require.NoError(t, err)

	pc.startCursor = "cursor-2"
	_, err = e.StartIncrementalSync(ctx)
	require.NoError(t, err)

	jobs, err := js.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.Contains(t, string(j.Payload), "cursor-1", "cached cursor must be reused, not re-fetched")
	}
}

func TestEngine_GetSyncHistoryMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	js := jobstoretest.New()
	cs := checkpointstoretest.New()
	pc := &fakePC{}
	bus := eventbus.New()
	e := syncengine.New(js, cs, pc, bus, 100)

	first, err := e.StartFullSync(ctx)
	require.NoError(t, err)
	require.NoError(t, e.PauseSync(ctx, first))
	second, err := e.StartFullSync(ctx)
	require.NoError(t, err)

	history, err := e.GetSyncHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second, history[0].SyncID)
	assert.Equal(t, first, history[1].SyncID)
}
