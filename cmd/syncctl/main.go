package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/driveindex/syncd/internal/checkpointstore"
	"github.com/driveindex/syncd/internal/config"
	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/env"
	"github.com/driveindex/syncd/internal/eventbus"
	"github.com/driveindex/syncd/internal/jobstore"
	"github.com/driveindex/syncd/internal/provider"
	"github.com/driveindex/syncd/internal/storage"
	"github.com/driveindex/syncd/internal/syncengine"
)

// syncctl is a thin administrative CLI over the Sync Engine and Job Store
// control surface, projected as a CLI rather than an HTTP facade. Not a
// production-grade tool, just a simple utility for operators.
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	ctx := context.Background()

	cfg, err := config.LoadCLIConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pool, err := storage.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to open database pool: %v", err)
	}
	defer pool.Close()

	js := jobstore.NewPostgresStore(pool)
	cs := checkpointstore.NewPostgresStore(pool)
	bus := eventbus.New()
	// The provider is only called by start-incremental, which fetches a
	// start cursor; the client is configured from the same SYNCD_PROVIDER_*
	// variables the worker reads.
	var provCfg config.ProviderConfig
	if err := env.Load(&provCfg); err != nil {
		log.Fatalf("failed to load provider config: %v", err)
	}
	pc := provider.NewClient(provider.NewHTTPCaller(provCfg.BaseURL, provCfg.Token, nil), provCfg)
	se := syncengine.New(js, cs, pc, bus, 100)

	switch cmd {
	case "start-full":
		runStartFull(ctx, se)
	case "start-incremental":
		runStartIncremental(ctx, se)
	case "resume":
		runResume(ctx, se, args)
	case "pause":
		runPause(ctx, se, args)
	case "delete":
		runDelete(ctx, se, args)
	case "status":
		runStatus(ctx, se, args)
	case "current":
		runCurrent(ctx, se)
	case "history":
		runHistory(ctx, se, args)
	case "stats":
		runStats(ctx, js)
	case "dead-letter":
		runDeadLetter(ctx, js, args)
	case "retry-dead":
		runRetryDead(ctx, js, args)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: syncctl <command> [flags]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  start-full                   start (or attach to) a full sync")
	fmt.Fprintln(os.Stderr, "  start-incremental            start an incremental sync")
	fmt.Fprintln(os.Stderr, "  resume -sync-id=ID           resume a paused or failed sync")
	fmt.Fprintln(os.Stderr, "  pause -sync-id=ID            pause an in-progress sync")
	fmt.Fprintln(os.Stderr, "  delete -sync-id=ID           delete a non-in-progress sync's checkpoint")
	fmt.Fprintln(os.Stderr, "  status -sync-id=ID           show one sync's checkpoint")
	fmt.Fprintln(os.Stderr, "  current                      show the currently in-progress sync, if any")
	fmt.Fprintln(os.Stderr, "  history -limit=N             list recent syncs, most recent first")
	fmt.Fprintln(os.Stderr, "  stats                        show job store counts")
	fmt.Fprintln(os.Stderr, "  dead-letter -limit=N         list dead-lettered jobs")
	fmt.Fprintln(os.Stderr, "  retry-dead -id=ID            requeue a dead-lettered job")
}

func runStartFull(ctx context.Context, se *syncengine.Engine) {
	syncID, err := se.StartFullSync(ctx)
	if err != nil {
		log.Fatalf("failed to start full sync: %v", err)
	}
	fmt.Printf("full sync started: %s\n", syncID)
}

func runStartIncremental(ctx context.Context, se *syncengine.Engine) {
	syncID, err := se.StartIncrementalSync(ctx)
	if err != nil {
		log.Fatalf("failed to start incremental sync: %v", err)
	}
	fmt.Printf("incremental sync started: %s\n", syncID)
}

func runResume(ctx context.Context, se *syncengine.Engine, args []string) {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	syncID := fs.String("sync-id", "", "sync id to resume (required)")
	fs.Parse(args)
	requireFlag(fs, "sync-id", *syncID)

	if err := se.ResumeSync(ctx, *syncID); err != nil {
		log.Fatalf("failed to resume sync: %v", err)
	}
	fmt.Printf("sync resumed: %s\n", *syncID)
}

func runPause(ctx context.Context, se *syncengine.Engine, args []string) {
	fs := flag.NewFlagSet("pause", flag.ExitOnError)
	syncID := fs.String("sync-id", "", "sync id to pause (required)")
	fs.Parse(args)
	requireFlag(fs, "sync-id", *syncID)

	if err := se.PauseSync(ctx, *syncID); err != nil {
		log.Fatalf("failed to pause sync: %v", err)
	}
	fmt.Printf("sync paused: %s\n", *syncID)
}

func runDelete(ctx context.Context, se *syncengine.Engine, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	syncID := fs.String("sync-id", "", "sync id to delete (required)")
	fs.Parse(args)
	requireFlag(fs, "sync-id", *syncID)

	if err := se.DeleteSync(ctx, *syncID); err != nil {
		log.Fatalf("failed to delete sync: %v", err)
	}
	fmt.Printf("sync deleted: %s\n", *syncID)
}

func runStatus(ctx context.Context, se *syncengine.Engine, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	syncID := fs.String("sync-id", "", "sync id to inspect (required)")
	fs.Parse(args)
	requireFlag(fs, "sync-id", *syncID)

	cp, err := se.GetStatus(ctx, *syncID)
	if err != nil {
		log.Fatalf("failed to get sync status: %v", err)
	}
	printCheckpoint(cp)
}

func runCurrent(ctx context.Context, se *syncengine.Engine) {
	cp, err := se.GetCurrentSync(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCheckpointNotFound) {
			fmt.Println("no sync currently in progress")
			return
		}
		log.Fatalf("failed to get current sync: %v", err)
	}
	printCheckpoint(cp)
}

func runHistory(ctx context.Context, se *syncengine.Engine, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "max rows to show")
	fs.Parse(args)

	history, err := se.GetSyncHistory(ctx, *limit)
	if err != nil {
		log.Fatalf("failed to get sync history: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYNC_ID\tSTATUS\tFILES_PROCESSED\tSTARTED_AT")
	for _, cp := range history {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", cp.SyncID, cp.Status, cp.FilesProcessed, cp.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	w.Flush()
}

func runStats(ctx context.Context, js jobstore.Store) {
	stats, err := js.Stats(ctx)
	if err != nil {
		log.Fatalf("failed to get job store stats: %v", err)
	}
	fmt.Printf("pending:          %d\n", stats.Pending)
	fmt.Printf("running:          %d\n", stats.Running)
	fmt.Printf("completed:        %d\n", stats.Completed)
	fmt.Printf("failed:           %d\n", stats.Failed)
	fmt.Printf("dead:             %d\n", stats.Dead)
	fmt.Printf("dead letter size: %d\n", stats.DeadLetterSize)
}

func runDeadLetter(ctx context.Context, js jobstore.Store, args []string) {
	fs := flag.NewFlagSet("dead-letter", flag.ExitOnError)
	limit := fs.Int("limit", 20, "max rows to show")
	fs.Parse(args)

	entries, err := js.DeadLetterJobs(ctx, *limit)
	if err != nil {
		log.Fatalf("failed to list dead-letter jobs: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tJOB_ID\tJOB_TYPE\tERROR\tFAILED_AT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.JobID, e.JobType, e.ErrorMessage, e.FailedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	w.Flush()
}

func runRetryDead(ctx context.Context, js jobstore.Store, args []string) {
	fs := flag.NewFlagSet("retry-dead", flag.ExitOnError)
	id := fs.String("id", "", "dead-letter entry id to retry (required)")
	fs.Parse(args)
	requireFlag(fs, "id", *id)

	jobID, err := js.RetryDeadJob(ctx, *id)
	if err != nil {
		log.Fatalf("failed to retry dead-lettered job: %v", err)
	}
	fmt.Printf("job requeued: %s\n", jobID)
}

func requireFlag(fs *flag.FlagSet, name, value string) {
	if value == "" {
		fmt.Fprintf(os.Stderr, "error: -%s is required\n", name)
		fs.Usage()
		os.Exit(1)
	}
}

func printCheckpoint(cp *domain.Checkpoint) {
	fmt.Printf("sync_id:         %s\n", cp.SyncID)
	fmt.Printf("status:          %s\n", cp.Status)
	fmt.Printf("files_processed: %d\n", cp.FilesProcessed)
	fmt.Printf("started_at:      %s\n", cp.StartedAt)
	if cp.CompletedAt != nil {
		fmt.Printf("completed_at:    %s\n", *cp.CompletedAt)
	}
	if cp.ErrorMessage != "" {
		fmt.Printf("error:           %s\n", cp.ErrorMessage)
	}
}
