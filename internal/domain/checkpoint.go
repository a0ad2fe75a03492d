package domain

import "time"

// CheckpointStatus is the lifecycle state of a sync's progress marker.
type CheckpointStatus string

const (
	CheckpointInProgress CheckpointStatus = "in_progress"
	CheckpointCompleted  CheckpointStatus = "completed"
	CheckpointFailed     CheckpointStatus = "failed"
	CheckpointPaused     CheckpointStatus = "paused"
)

// Checkpoint is the durable progress marker for one sync_id: the last
// observed page cursor and a monotonic processed count. FilesProcessed
// must never decrease across observed updates.
type Checkpoint struct {
	ID             string
	SyncID         string
	PageToken      *string
	FilesProcessed int64
	Status         CheckpointStatus
	StartedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
	ErrorMessage   string
}
