package syncengine

import (
	"context"

	"github.com/driveindex/syncd/internal/provider"
)

// ProviderClient is the subset of *provider.Client the Sync Engine and its
// handlers consume, narrowed to an interface so tests can supply a fake PC
// without standing up an AuthenticatedCaller.
type ProviderClient interface {
	ListDescriptors(ctx context.Context, pageToken string, pageSize int) (*provider.ListDescriptorsResponse, error)
	ListChanges(ctx context.Context, pageToken string, pageSize int) (*provider.ListChangesResponse, error)
	StartCursor(ctx context.Context) (string, error)
}

var _ ProviderClient = (*provider.Client)(nil)
