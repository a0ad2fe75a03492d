package config

import "fmt"

// FilestoreConfig selects and configures the file descriptor store
// backend: postgres, gcs, or fs.
type FilestoreConfig struct {
	Backend string `env:"SYNCD_FILESTORE_BACKEND" default:"postgres"` // postgres, gcs, fs

	GCSBucket string `env:"SYNCD_FILESTORE_GCS_BUCKET"`
	FSDir     string `env:"SYNCD_FILESTORE_FS_DIR" default:"./syncd-data"`

	// DeletionPolicy controls whether a change record marked "removed"
	// purges the corresponding file row or only records the removal as
	// an observability signal. One of "retain" (default) or "purge".
	DeletionPolicy string `env:"SYNCD_FILESTORE_DELETION_POLICY" default:"retain"`
}

// Validate validates the filestore configuration.
func (c *FilestoreConfig) Validate() error {
	switch c.Backend {
	case "postgres":
		// uses the shared DatabaseConfig DSN, nothing further required here.
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("SYNCD_FILESTORE_GCS_BUCKET is required when SYNCD_FILESTORE_BACKEND is 'gcs'")
		}
	case "fs":
		if c.FSDir == "" {
			return fmt.Errorf("SYNCD_FILESTORE_FS_DIR is required when SYNCD_FILESTORE_BACKEND is 'fs'")
		}
	default:
		return fmt.Errorf("unknown SYNCD_FILESTORE_BACKEND: %s", c.Backend)
	}

	switch c.DeletionPolicy {
	case "retain", "purge":
	default:
		return fmt.Errorf("unknown SYNCD_FILESTORE_DELETION_POLICY: %s", c.DeletionPolicy)
	}

	return nil
}
