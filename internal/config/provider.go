package config

import "time"

// ProviderConfig holds the recognized Provider Client options:
// max_retries, retry_delay_ms, plus the fixed-at-100ms minimum spacing
// (not env-configurable, kept as a named constant below so callers never
// hardcode the magic number).
type ProviderConfig struct {
	MaxRetries   int `env:"SYNCD_PROVIDER_MAX_RETRIES" default:"5"`
	RetryDelayMs int `env:"SYNCD_PROVIDER_RETRY_DELAY_MS" default:"1000"`
	PageSize     int `env:"SYNCD_PROVIDER_PAGE_SIZE" default:"100"`

	// BaseURL and Token configure the default AuthenticatedCaller
	// (provider.HTTPCaller). Token is used verbatim as a bearer token.
	BaseURL string `env:"SYNCD_PROVIDER_BASE_URL"`
	Token   string `env:"SYNCD_PROVIDER_TOKEN"`
}

// MinRequestSpacing is the minimum spacing PC enforces between any two
// requests across the client instance.
const MinRequestSpacing = 100 * time.Millisecond

// MaxTransientBackoff caps the jittered transient-failure backoff PC
// applies between retries.
const MaxTransientBackoff = 60 * time.Second
