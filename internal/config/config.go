package config

import (
	"fmt"
	"time"

	"github.com/driveindex/syncd/internal/env"
)

// WorkerConfig holds all configuration for the cmd/syncd worker binary.
type WorkerConfig struct {
	Database        DatabaseConfig
	Provider        ProviderConfig
	Runner          RunnerConfig
	Filestore       FilestoreConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"SYNCD_SHUTDOWN_TIMEOUT" default:"15s"`
}

// LoadWorkerConfig loads and validates worker configuration from the
// environment.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker config: %w", err)
	}

	return cfg, nil
}

// CLIConfig holds configuration for the cmd/syncctl administrative CLI.
// It only needs enough to reach the same durable store the worker uses.
type CLIConfig struct {
	Database DatabaseConfig
}

// LoadCLIConfig loads and validates syncctl configuration from the
// environment.
func LoadCLIConfig() (*CLIConfig, error) {
	cfg := &CLIConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load CLI config: %w", err)
	}

	return cfg, nil
}
