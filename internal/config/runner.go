package config

import "time"

// RunnerConfig holds Job Runner configuration. PollInterval is fixed at
// 1s in the current design, but is still exposed as a tunable for tests.
type RunnerConfig struct {
	Concurrency  int           `env:"SYNCD_RUNNER_CONCURRENCY" default:"10"`
	PollInterval time.Duration `env:"SYNCD_RUNNER_POLL_INTERVAL" default:"1s"`

	// RetryDelayMs is the base for JR's own reschedule backoff:
	// delay = retry_delay_ms * 2^attempts, uncapped, no jitter (jitter is
	// a PC-layer concern only).
	RetryDelayMs int `env:"SYNCD_RUNNER_RETRY_DELAY_MS" default:"1000"`

	// StaleJobThreshold gates the startup reclaim pass: a running job
	// whose started_at is older than this is reclaimed back to pending.
	StaleJobThreshold time.Duration `env:"SYNCD_RUNNER_STALE_JOB_THRESHOLD" default:"10m"`
}
