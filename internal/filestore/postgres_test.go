package filestore_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveindex/syncd/internal/config"
	"github.com/driveindex/syncd/internal/filestore"
	"github.com/driveindex/syncd/internal/filestore/compliance"
	"github.com/driveindex/syncd/internal/storage"
)

func TestPostgresStore_Compliance(t *testing.T) {
	dsn := os.Getenv("SYNCD_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("SYNCD_TEST_DB_DSN not set, skipping postgres tests")
	}

	ctx := context.Background()
	dbCfg := config.DatabaseConfig{DSN: dsn, AutoMigrate: true}
	pool, err := storage.NewPool(ctx, dbCfg)
	require.NoError(t, err)
	defer pool.Close()

	compliance.RunStorageComplianceTest(t, func() (filestore.Store, func()) {
		store := filestore.NewPostgresStore(pool)
		return store, func() {
			_, _ = pool.Exec(ctx, `TRUNCATE files`)
		}
	})
}
