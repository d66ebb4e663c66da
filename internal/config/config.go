// Package config defines the global configuration structure for the SkyCast
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"skycast/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the SkyCast service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"skycast-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server    ServerConfig
	Database  DatabaseConfig
	Upstream  UpstreamConfig
	Model     ModelConfig
	Scheduler SchedulerConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// UpstreamConfig holds the external weather provider settings. The timeout
// bounds the whole fetch; there is no retry on this path because a stale
// reading from history beats a slow answer.
type UpstreamConfig struct {
	APIKey       SecretString  `envconfig:"WEATHER_API_KEY" validate:"required"`
	BaseURL      string        `envconfig:"WEATHER_API_BASE_URL" default:"https://api.weatherapi.com" validate:"url"`
	Timeout      time.Duration `envconfig:"WEATHER_API_TIMEOUT" default:"10s"`
	ForecastDays int           `envconfig:"WEATHER_FORECAST_DAYS" default:"7" validate:"min=1,max=14"`
}

// ModelConfig holds the prediction model service settings. The probe timeout
// applies to the health check, the call timeout to the inference request.
type ModelConfig struct {
	BaseURL      string        `envconfig:"MODEL_BASE_URL" default:"http://localhost:5000" validate:"url"`
	ProbeTimeout time.Duration `envconfig:"MODEL_PROBE_TIMEOUT" default:"2s"`
	CallTimeout  time.Duration `envconfig:"MODEL_CALL_TIMEOUT" default:"5s"`
	HistoryLimit int           `envconfig:"MODEL_HISTORY_LIMIT" default:"24" validate:"min=1,max=168"`
}

// SchedulerConfig holds the background refresh job settings.
type SchedulerConfig struct {
	Enabled     bool          `envconfig:"SCHEDULER_ENABLED" default:"false"`
	Interval    time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"30m"`
	Concurrency int           `envconfig:"SCHEDULER_CONCURRENCY" default:"5" validate:"min=1,max=64"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
