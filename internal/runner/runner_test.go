package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveindex/syncd/internal/config"
	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/eventbus"
	"github.com/driveindex/syncd/internal/jobstore"
	"github.com/driveindex/syncd/internal/jobstore/jobstoretest"
	"github.com/driveindex/syncd/internal/runner"
)

func testConfig() config.RunnerConfig {
	return config.RunnerConfig{
		Concurrency:  5,
		PollInterval: 5 * time.Millisecond,
		RetryDelayMs: 10,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met before timeout")
}

func TestRunner_DispatchesAndMarksCompleted(t *testing.T) {
	js := jobstoretest.New()
	bus := eventbus.New()
	r := runner.New(js, bus, testConfig(), nil)

	var invoked int32
	r.RegisterHandler("noop", func(ctx context.Context, job *domain.Job) error {
		atomic.AddInt32(&invoked, 1)
		return nil
	})

	ctx := context.Background()
	id, err := js.Create(ctx, "noop", nil, jobstore.CreateOptions{MaxAttempts: 1})
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	go r.Start(runCtx)

	waitFor(t, 150*time.Millisecond, func() bool {
		job, err := js.FindByID(ctx, id)
		return err == nil && job.Status == domain.JobCompleted
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&invoked))
}

func TestRunner_RetryThenDeadLetter(t *testing.T) {
	js := jobstoretest.New()
	bus := eventbus.New()
	r := runner.New(js, bus, testConfig(), nil)

	r.RegisterHandler("always-fails", func(ctx context.Context, job *domain.Job) error {
		return errors.New("boom")
	})

	ctx := context.Background()
	id, err := js.Create(ctx, "always-fails", nil, jobstore.CreateOptions{MaxAttempts: 2})
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	go r.Start(runCtx)

	waitFor(t, 350*time.Millisecond, func() bool {
		job, err := js.FindByID(ctx, id)
		return err == nil && job.Status == domain.JobDead
	})

	job, err := js.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Attempts)

	entries, err := js.DeadLetterJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].JobID)
}

func TestRunner_MaxAttemptsOneDeadLettersImmediately(t *testing.T) {
	js := jobstoretest.New()
	bus := eventbus.New()
	r := runner.New(js, bus, testConfig(), nil)

	r.RegisterHandler("always-fails", func(ctx context.Context, job *domain.Job) error {
		return errors.New("boom")
	})

	ctx := context.Background()
	id, err := js.Create(ctx, "always-fails", nil, jobstore.CreateOptions{MaxAttempts: 1})
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	go r.Start(runCtx)

	waitFor(t, 80*time.Millisecond, func() bool {
		job, err := js.FindByID(ctx, id)
		return err == nil && job.Status == domain.JobDead
	})
}

func TestRunner_MissingHandlerFailsImmediately(t *testing.T) {
	js := jobstoretest.New()
	bus := eventbus.New()
	r := runner.New(js, bus, testConfig(), nil)

	ctx := context.Background()
	id, err := js.Create(ctx, "unknown-type", nil, jobstore.CreateOptions{MaxAttempts: 3})
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	go r.Start(runCtx)

	waitFor(t, 80*time.Millisecond, func() bool {
		job, err := js.FindByID(ctx, id)
		return err == nil && job.Status == domain.JobFailed
	})
}

func TestRunner_PanicGoesDirectlyToDeadLetter(t *testing.T) {
	js := jobstoretest.New()
	bus := eventbus.New()
	r := runner.New(js, bus, testConfig(), nil)

	r.RegisterHandler("panics", func(ctx context.Context, job *domain.Job) error {
		panic("unexpected")
	})

	ctx := context.Background()
	id, err := js.Create(ctx, "panics", nil, jobstore.CreateOptions{MaxAttempts: 10})
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	go r.Start(runCtx)

	waitFor(t, 80*time.Millisecond, func() bool {
		job, err := js.FindByID(ctx, id)
		return err == nil && job.Status == domain.JobDead
	})

	job, err := js.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts, "panic must not consume extra retry budget beyond the one attempt that triggered it")
}

func TestRunner_PauseStopsNewDispatch(t *testing.T) {
	js := jobstoretest.New()
	bus := eventbus.New()
	r := runner.New(js, bus, testConfig(), nil)

	var invoked int32
	r.RegisterHandler("noop", func(ctx context.Context, job *domain.Job) error {
		atomic.AddInt32(&invoked, 1)
		return nil
	})
	r.Pause()

	ctx := context.Background()
	_, err := js.Create(ctx, "noop", nil, jobstore.CreateOptions{MaxAttempts: 1})
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	go r.Start(runCtx)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&invoked))
}

func TestRunner_ReclaimStaleResetsOldRunningJobs(t *testing.T) {
	js := jobstoretest.New()
	bus := eventbus.New()
	cfg := testConfig()
	cfg.StaleJobThreshold = time.Millisecond
	r := runner.New(js, bus, cfg, nil)

	ctx := context.Background()
	id, err := js.Create(ctx, "noop", nil, jobstore.CreateOptions{MaxAttempts: 1})
	require.NoError(t, err)
	require.NoError(t, js.MarkRunning(ctx, id))

	time.Sleep(5 * time.Millisecond)

	n, err := r.ReclaimStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := js.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)
}
