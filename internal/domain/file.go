package domain

import "time"

// FileDescriptor is the locally synced record of a provider file, keyed by
// the provider's own file id. Upsert by ID is idempotent: the last write
// wins on every field and SyncedAt reflects the most recent successful
// write.
type FileDescriptor struct {
	ID           string
	Name         string
	MimeType     string
	Size         int64
	ParentID     string
	ModifiedTime time.Time
	CreatedTime  time.Time
	MD5Checksum  string
	SyncedAt     time.Time
	RawMetadata  []byte
}
