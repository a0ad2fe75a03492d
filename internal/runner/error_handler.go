package runner

import (
	"context"
	"log/slog"

	"github.com/driveindex/syncd/internal/domain"
)

// ErrorHandler is a hook for telemetry/alerting integration, invoked
// alongside (never instead of) JR's own retry/dead-letter bookkeeping.
type ErrorHandler interface {
	HandleError(ctx context.Context, job *domain.Job, err error)
	HandlePanic(ctx context.Context, job *domain.Job, panicVal any, stackTrace string)
}

// DefaultErrorHandler logs errors and panics with structured logging.
type DefaultErrorHandler struct{}

func (DefaultErrorHandler) HandleError(ctx context.Context, job *domain.Job, err error) {
	slog.ErrorContext(ctx, "job failed",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.Int("attempts", job.Attempts),
		slog.String("error", err.Error()),
	)
}

func (DefaultErrorHandler) HandlePanic(ctx context.Context, job *domain.Job, panicVal any, stackTrace string) {
	slog.ErrorContext(ctx, "job panicked",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.Any("panic_value", panicVal),
		slog.String("stack_trace", stackTrace),
	)
}
