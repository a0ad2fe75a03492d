// Package runner implements the Job Runner (JR): a poll loop that
// dispatches pending jobs to registered handlers under a concurrency
// bound, tracking in-flight work in a guarded map and recording outcomes
// back to the Job Store.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/driveindex/syncd/internal/config"
	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/eventbus"
	"github.com/driveindex/syncd/internal/jobstore"
)

// Stats merges in-memory runner state with jobstore.Stats.
type Stats struct {
	jobstore.Stats
	Running     bool
	Paused      bool
	Active      int
	Concurrency int
}

// Runner is the Job Runner (JR). Its mutable state is the active-jobs
// map, the paused and running flags, and the concurrency bound, all
// guarded by mu, plus the handler registry, guarded by handlersMu.
type Runner struct {
	js           jobstore.Store
	bus          *eventbus.Bus
	errHandler   ErrorHandler
	pollInterval time.Duration
	retryDelay   time.Duration
	staleAfter   time.Duration

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	mu          sync.Mutex
	active      map[string]struct{}
	paused      bool
	running     bool
	concurrency int

	wg sync.WaitGroup
}

// New constructs a Runner. errHandler may be nil, in which case
// DefaultErrorHandler is used.
func New(js jobstore.Store, bus *eventbus.Bus, cfg config.RunnerConfig, errHandler ErrorHandler) *Runner {
	if errHandler == nil {
		errHandler = DefaultErrorHandler{}
	}
	return &Runner{
		js:           js,
		bus:          bus,
		errHandler:   errHandler,
		pollInterval: cfg.PollInterval,
		retryDelay:   time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		staleAfter:   cfg.StaleJobThreshold,
		handlers:     make(map[string]HandlerFunc),
		active:       make(map[string]struct{}),
		concurrency:  cfg.Concurrency,
	}
}

// RegisterHandler registers h under jobType. Call before Start; the
// registry is read-locked on every job dispatch so registering after
// Start is safe but racy with in-flight dispatch decisions.
func (r *Runner) RegisterHandler(jobType string, h HandlerFunc) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.handlers[jobType] = h
}

// Start runs ReclaimStale once, then the poll loop until ctx is cancelled.
// Stop does not end the loop. On cancellation it blocks until every
// in-flight handler has returned.
func (r *Runner) Start(ctx context.Context) error {
	if n, err := r.ReclaimStale(ctx); err != nil {
		slog.ErrorContext(ctx, "reclaim stale jobs failed", slog.String("error", err.Error()))
	} else if n > 0 {
		slog.WarnContext(ctx, "reclaimed stale running jobs", slog.Int("count", n))
	}

	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

// Stop is best-effort: it does not interrupt in-flight handlers. Callers
// cancel the context passed to Start to actually halt polling; Stop exists
// for the control-surface API shape.
func (r *Runner) Stop() error {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

// Pause toggles the paused flag, consulted once per poll tick. In-flight
// jobs are unaffected.
func (r *Runner) Pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
}

func (r *Runner) Resume() {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
}

// SetConcurrency updates the dispatch bound. If reduced below the current
// active count, no job is cancelled; the excess drains naturally.
func (r *Runner) SetConcurrency(n int) {
	r.mu.Lock()
	r.concurrency = n
	r.mu.Unlock()
}

// GetActiveJobs returns a snapshot of currently in-flight job ids.
func (r *Runner) GetActiveJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}

// GetStats merges runner state with JS.get_stats.
func (r *Runner) GetStats(ctx context.Context) (Stats, error) {
	jsStats, err := r.js.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("get job store stats: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Stats:       jsStats,
		Running:     r.running,
		Paused:      r.paused,
		Active:      len(r.active),
		Concurrency: r.concurrency,
	}, nil
}

// ReclaimStale resets jobs stuck in running past StaleJobThreshold back to
// pending.
func (r *Runner) ReclaimStale(ctx context.Context) (int, error) {
	if r.staleAfter <= 0 {
		return 0, nil
	}
	return r.js.ReclaimStale(ctx, r.staleAfter)
}

// pollOnce executes a single poll tick: fetch up to the available
// concurrency slots and dispatch each asynchronously.
func (r *Runner) pollOnce(ctx context.Context) {
	r.mu.Lock()
	if r.paused {
		r.mu.Unlock()
		return
	}
	slots := r.concurrency - len(r.active)
	r.mu.Unlock()

	if slots <= 0 {
		return
	}

	jobs, err := r.js.FindPending(ctx, slots)
	if err != nil {
		slog.ErrorContext(ctx, "find pending jobs failed", slog.String("error", err.Error()))
		return
	}

	for _, job := range jobs {
		if err := r.js.MarkRunning(ctx, job.ID); err != nil {
			slog.ErrorContext(ctx, "mark running failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
			continue
		}
		job.Attempts++ // MarkRunning increments attempts server-side; mirror locally for delay math

		r.mu.Lock()
		r.active[job.ID] = struct{}{}
		r.mu.Unlock()

		r.bus.Publish(eventbus.Event{Kind: eventbus.JobStarted, JobID: job.ID})

		r.wg.Add(1)
		go r.dispatch(ctx, job)
	}
}

// dispatch invokes the registered handler for job, recovering panics and
// recording the outcome back to JS. Removing the job from the active map
// happens whether the handler returned or panicked.
func (r *Runner) dispatch(ctx context.Context, job *domain.Job) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.active, job.ID)
		r.mu.Unlock()
	}()

	r.handlersMu.RLock()
	handler, ok := r.handlers[job.Type]
	r.handlersMu.RUnlock()

	if !ok {
		if _, err := r.js.MarkFailed(ctx, job.ID, ErrHandlerNotFound.Error()); err != nil {
			slog.ErrorContext(ctx, "mark failed (no handler) failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
		r.bus.Publish(eventbus.Event{Kind: eventbus.JobFailed, JobID: job.ID, Err: ErrHandlerNotFound})
		return
	}

	err := r.invoke(ctx, handler, job)
	if err == nil {
		if err := r.js.MarkCompleted(ctx, job.ID); err != nil {
			slog.ErrorContext(ctx, "mark completed failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
			return
		}
		r.bus.Publish(eventbus.Event{Kind: eventbus.JobCompleted, JobID: job.ID})
		return
	}

	if p, ok := err.(PanicError); ok {
		r.errHandler.HandlePanic(ctx, job, p.Value, p.StackTrace)
		if ferr := r.js.ForceDead(ctx, job.ID, p.Error()); ferr != nil {
			slog.ErrorContext(ctx, "force dead failed", slog.String("job_id", job.ID), slog.String("error", ferr.Error()))
		}
		r.bus.Publish(eventbus.Event{Kind: eventbus.JobFailed, JobID: job.ID, Err: err})
		return
	}

	r.errHandler.HandleError(ctx, job, err)
	r.finishFailed(ctx, job, err)
}

// finishFailed re-reads the job for its latest attempts, then either
// reschedules with backoff or lets mark_failed escalate to dead-letter.
func (r *Runner) finishFailed(ctx context.Context, job *domain.Job, handlerErr error) {
	latest, err := r.js.FindByID(ctx, job.ID)
	if err != nil {
		slog.ErrorContext(ctx, "re-read job for failure handling failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		latest = job
	}

	status, err := r.js.MarkFailed(ctx, job.ID, handlerErr.Error())
	if err != nil {
		slog.ErrorContext(ctx, "mark failed failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return
	}

	if status == domain.JobDead {
		r.bus.Publish(eventbus.Event{Kind: eventbus.JobFailed, JobID: job.ID, Err: handlerErr})
		return
	}

	delay := r.backoffDelay(latest.Attempts)
	if err := r.js.Reschedule(ctx, job.ID, delay); err != nil {
		slog.ErrorContext(ctx, "reschedule failed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return
	}
	r.bus.Publish(eventbus.Event{Kind: eventbus.JobRetry, JobID: job.ID, Err: handlerErr, Delay: delay})
}

// backoffDelay computes retry_delay_ms * 2^attempts, uncapped, no jitter
// (jitter is a PC-layer concern only).
func (r *Runner) backoffDelay(attempts int) time.Duration {
	return time.Duration(float64(r.retryDelay) * math.Pow(2, float64(attempts)))
}

// invoke calls handler, converting a recovered panic into a PanicError.
func (r *Runner) invoke(ctx context.Context, handler HandlerFunc, job *domain.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = PanicError{Value: rec, StackTrace: string(debug.Stack())}
		}
	}()
	return handler(ctx, job)
}
