package domain

import "time"

// DeadLetterEntry is an append-only record of a job that exhausted its
// retry budget (or panicked). A Job with Status = JobDead has exactly one
// DeadLetterEntry referencing it; the entry is removed when the job is
// retried via JobStore.RetryDeadJob.
type DeadLetterEntry struct {
	ID           string
	JobID        string
	JobType      string
	Payload      []byte
	ErrorMessage string
	FailedAt     time.Time
}
