package domain

import "errors"

// Store-level sentinel errors. These are returned by JobStore,
// CheckpointStore, and filestore.Store implementations and checked by the
// layers above with errors.Is.
var (
	// ErrJobNotFound indicates no job exists with the requested id.
	ErrJobNotFound = errors.New("job not found")

	// ErrCheckpointNotFound indicates no checkpoint exists for the
	// requested sync_id or surrogate id.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrDeadLetterEntryNotFound indicates no dead-letter row exists for
	// the requested id.
	ErrDeadLetterEntryNotFound = errors.New("dead-letter entry not found")

	// ErrInvalidStateTransition indicates a state-change operation was
	// invoked against a job or checkpoint not in the required starting
	// state (e.g. mark_completed on a job that is not running).
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrFileNotFound indicates no file descriptor exists for the
	// requested provider file id.
	ErrFileNotFound = errors.New("file descriptor not found")
)
