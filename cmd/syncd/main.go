package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driveindex/syncd/internal/checkpointstore"
	"github.com/driveindex/syncd/internal/config"
	"github.com/driveindex/syncd/internal/eventbus"
	"github.com/driveindex/syncd/internal/filestore"
	"github.com/driveindex/syncd/internal/jobstore"
	"github.com/driveindex/syncd/internal/observability"
	"github.com/driveindex/syncd/internal/provider"
	"github.com/driveindex/syncd/internal/runner"
	"github.com/driveindex/syncd/internal/storage"
	"github.com/driveindex/syncd/internal/syncengine"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obsCfg := observability.Config{Enabled: cfg.Observability.OTelEnabled, ServiceName: cfg.Observability.ServiceName}

	lp, logger, err := observability.InitLogger(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer shutdownWithTimeout(lp.Shutdown, "logger provider")
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer shutdownWithTimeout(tp.Shutdown, "tracer provider")

	mp, err := observability.InitMeterProvider(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer shutdownWithTimeout(mp.Shutdown, "meter provider")

	slog.InfoContext(ctx, "starting syncd worker")

	pool, err := storage.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database pool: %w", err)
	}
	defer pool.Close()

	fs, err := newFilestore(ctx, cfg.Filestore, pool)
	if err != nil {
		return fmt.Errorf("failed to init file store: %w", err)
	}

	js := jobstore.NewPostgresStore(pool)
	cs := checkpointstore.NewPostgresStore(pool)

	caller := provider.NewHTTPCaller(cfg.Provider.BaseURL, cfg.Provider.Token, nil)
	pc := provider.NewClient(caller, cfg.Provider)

	bus := eventbus.New()
	jr := runner.New(js, bus, cfg.Runner, nil)
	se := syncengine.New(js, cs, pc, bus, cfg.Provider.PageSize)
	syncengine.RegisterHandlers(jr, cs, fs, pc, cfg.Provider.PageSize, cfg.Filestore.DeletionPolicy)

	logEvents(ctx, bus)

	if current, err := se.GetCurrentSync(ctx); err == nil {
		slog.InfoContext(ctx, "resuming in-progress sync on startup", slog.String("sync_id", current.SyncID))
		if err := se.ResumeSync(ctx, current.SyncID); err != nil {
			slog.ErrorContext(ctx, "failed to resume in-progress sync", slog.String("error", err.Error()))
		}
	}

	errResult := make(chan error, 1)
	go func() {
		if err := jr.Start(ctx); err != nil && ctx.Err() == nil {
			errResult <- fmt.Errorf("runner stopped: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := jr.Stop(); err != nil {
			slog.WarnContext(shutdownCtx, "runner stop reported an error", slog.String("error", err.Error()))
		}
		return nil
	case err := <-errResult:
		return err
	}
}

func newFilestore(ctx context.Context, cfg config.FilestoreConfig, pool *pgxpool.Pool) (filestore.Store, error) {
	switch cfg.Backend {
	case "gcs":
		return filestore.NewGCSStore(ctx, cfg.GCSBucket)
	case "fs":
		return filestore.NewFSStore(cfg.FSDir)
	default:
		return filestore.NewPostgresStore(pool), nil
	}
}

func logEvents(ctx context.Context, bus *eventbus.Bus) {
	_, events := bus.Subscribe(64)
	go func() {
		for ev := range events {
			attrs := []any{slog.String("kind", ev.Kind)}
			if ev.JobID != "" {
				attrs = append(attrs, slog.String("job_id", ev.JobID))
			}
			if ev.SyncID != "" {
				attrs = append(attrs, slog.String("sync_id", ev.SyncID))
			}
			if ev.Err != nil {
				attrs = append(attrs, slog.String("error", ev.Err.Error()))
			}
			slog.InfoContext(ctx, "event", attrs...)
		}
	}()
}

func shutdownWithTimeout(shutdown func(context.Context) error, name string) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "failed to shutdown "+name, slog.String("error", err.Error()))
	}
}
