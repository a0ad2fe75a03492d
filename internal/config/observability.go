package config

// ObservabilityConfig holds OpenTelemetry wiring configuration.
type ObservabilityConfig struct {
	OTelEnabled   bool   `env:"SYNCD_OTEL_ENABLED" default:"true"`
	ServiceName   string `env:"OTEL_SERVICE_NAME" default:"syncd"`
	OTelCollector string `env:"SYNCD_OTEL_COLLECTOR" default:"localhost:4318"`
}
