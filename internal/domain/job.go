package domain

import "time"

// JobStatus is the lifecycle state of a Job. See JobStore for the legal
// transitions between these values.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobDead      JobStatus = "dead"
)

// Job is a unit of work dispatched to a handler registered under Type.
// Payload is an opaque structured blob preserved verbatim across restarts;
// handlers decode it themselves.
type Job struct {
	ID          string
	Type        string
	Payload     []byte
	Status      JobStatus
	Priority    int
	Attempts    int
	MaxAttempts int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ScheduledAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Exhausted reports whether the job has no retry budget left.
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
