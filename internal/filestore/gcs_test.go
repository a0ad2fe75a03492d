package filestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driveindex/syncd/internal/filestore"
	"github.com/driveindex/syncd/internal/filestore/compliance"
)

func TestGCSStore_Compliance(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET not set, skipping GCS tests")
	}

	compliance.RunStorageComplianceTest(t, func() (filestore.Store, func()) {
		ctx := context.Background()

		store, err := filestore.NewGCSStore(ctx, bucket)
		require.NoError(t, err)

		cleanup := func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			list, err := store.List(cleanupCtx)
			if err != nil {
				t.Logf("warning: failed to list objects during cleanup: %v", err)
				return
			}
			for _, fd := range list {
				if err := store.Delete(cleanupCtx, fd.ID); err != nil {
					t.Logf("warning: failed to delete object %s: %v", fd.ID, err)
				}
			}
		}

		return store, cleanup
	})
}
