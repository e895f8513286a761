package types

import "time"

// Config represents the tripintel runtime configuration
type Config struct {
	// Gemini upstream. Both are optional at load time; a request that needs
	// them fails with a configuration error instead.
	GeminiAPIKey string `json:"-" env:"GEMINI_API_KEY"`
	GeminiAPIURL string `json:"gemini_api_url" env:"GEMINI_API_URL"`

	// Upstream call tuning. Attempts x timeout plus backoff must fit inside
	// SERVER_WRITE_TIMEOUT or the response is lost.
	UpstreamMaxAttempts int           `json:"upstream_max_attempts" env:"UPSTREAM_MAX_ATTEMPTS,default=3"`
	UpstreamBaseDelay   time.Duration `json:"upstream_base_delay" env:"UPSTREAM_BASE_DELAY,default=1s"`
	UpstreamMaxJitter   time.Duration `json:"upstream_max_jitter" env:"UPSTREAM_MAX_JITTER,default=1s"`
	UpstreamTimeout     time.Duration `json:"upstream_timeout" env:"UPSTREAM_TIMEOUT,default=45s"`

	// HTTP server
	ServerHost            string        `json:"server_host" env:"HOST,default=0.0.0.0"`
	ServerPort            int           `json:"server_port" env:"PORT,default=3000"`
	ServerReadTimeout     time.Duration `json:"server_read_timeout" env:"SERVER_READ_TIMEOUT,default=30s"`
	ServerWriteTimeout    time.Duration `json:"server_write_timeout" env:"SERVER_WRITE_TIMEOUT,default=180s"`
	ServerIdleTimeout     time.Duration `json:"server_idle_timeout" env:"SERVER_IDLE_TIMEOUT,default=120s"`
	ServerShutdownTimeout time.Duration `json:"server_shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT,default=30s"`

	// OpenTelemetry
	OTelEnabled              bool          `json:"otel_enabled" env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string        `json:"otel_service_name" env:"OTEL_SERVICE_NAME,default=tripintel"`
	OTelExporterOTLPEndpoint string        `json:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string        `json:"otel_exporter_otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelResourceAttributes   string        `json:"otel_resource_attributes" env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelTracesSampler        string        `json:"otel_traces_sampler" env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64       `json:"otel_traces_sampler_arg" env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
	OTelMetricInterval       time.Duration `json:"otel_metric_export_interval" env:"OTEL_METRIC_EXPORT_INTERVAL,default=60s"`
}

// HasGeminiCredentials reports whether both the API key and the base URL are set
func (c *Config) HasGeminiCredentials() bool {
	return c != nil && c.GeminiAPIKey != "" && c.GeminiAPIURL != ""
}
