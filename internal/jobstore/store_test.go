package jobstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/jobstore"
	"github.com/driveindex/syncd/internal/jobstore/jobstoretest"
)

func TestStore_StateTransitionTable(t *testing.T) {
	ctx := context.Background()
	store := jobstoretest.New()

	id, err := store.Create(ctx, "full_sync", []byte(`{}`), jobstore.CreateOptions{MaxAttempts: 2})
	require.NoError(t, err)

	job, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)

	require.NoError(t, store.MarkRunning(ctx, id))
	job, err = store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, job.Status)
	assert.Equal(t, 1, job.Attempts)
	require.NotNil(t, job.StartedAt)

	status, err := store.MarkFailed(ctx, id, "boom")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, status)

	require.NoError(t, store.Reschedule(ctx, id, 0))
	job, err = store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)

	require.NoError(t, store.MarkRunning(ctx, id))
	status, err = store.MarkFailed(ctx, id, "boom again")
	require.NoError(t, err)
	assert.Equal(t, domain.JobDead, status)

	job, err = store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDead, job.Status)

	entries, err := store.DeadLetterJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].JobID)

	retriedID, err := store.RetryDeadJob(ctx, entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, id, retriedID)

	job, err = store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, 0, job.Attempts)

	entries, err = store.DeadLetterJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_IllegalTransitionsRejected(t *testing.T) {
	ctx := context.Background()
	store := jobstoretest.New()

	id, err := store.Create(ctx, "incremental_sync", []byte(`{}`), jobstore.CreateOptions{MaxAttempts: 3})
	require.NoError(t, err)

	// can't complete a job that never started running
	err = store.MarkCompleted(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	// can't reschedule a job that isn't in "failed"
	err = store.Reschedule(ctx, id, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
}

func TestStore_DispatchOrdering(t *testing.T) {
	ctx := context.Background()
	store := jobstoretest.New()

	lowID, err := store.Create(ctx, "t", []byte(`{}`), jobstore.CreateOptions{Priority: 1, MaxAttempts: 1})
	require.NoError(t, err)
	midID, err := store.Create(ctx, "t", []byte(`{}`), jobstore.CreateOptions{Priority: 5, MaxAttempts: 1})
	require.NoError(t, err)
	highID, err := store.Create(ctx, "t", []byte(`{}`), jobstore.CreateOptions{Priority: 10, MaxAttempts: 1})
	require.NoError(t, err)

	pending, err := store.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []string{highID, midID, lowID}, []string{pending[0].ID, pending[1].ID, pending[2].ID})
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	store := jobstoretest.New()

	_, err := store.Create(ctx, "t", []byte(`{}`), jobstore.CreateOptions{MaxAttempts: 1})
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 0, stats.DeadLetterSize)
}
