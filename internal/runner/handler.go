package runner

import (
	"context"

	"github.com/driveindex/syncd/internal/domain"
)

// HandlerFunc processes one job. Handlers decode job.Payload themselves at
// the top of their body: dispatch is stringly-typed at the store boundary,
// but the payload is statically typed again inside the handler. Errors
// bubble out uncaught so JR can account for them.
type HandlerFunc func(ctx context.Context, job *domain.Job) error
