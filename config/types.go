package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Settings is the resolved harness configuration. It is immutable after Load.
type Settings struct {
	// Env names the resolution source: "local" or a deployment name. Always taken from ENV.
	Env string `koanf:"env" json:"env"`

	// BaseURL is the echo service scheme and host.
	BaseURL string `koanf:"base_url" json:"base_url" validate:"required,url"`

	// ExtBaseURL is the external echo service used when ExtHTTP is set.
	ExtBaseURL string `koanf:"ext_base_url" json:"ext_base_url" validate:"omitempty,url"`

	// ExtHTTP selects ExtBaseURL over BaseURL. HTTPBIN_URL still wins.
	ExtHTTP bool `koanf:"ext_http" json:"ext_http"`

	// Timeout is the per-attempt HTTP timeout in seconds.
	Timeout int `koanf:"timeout" json:"timeout" validate:"gt=0"`

	Retry         RetrySettings         `koanf:"retry" json:"retry"`
	RabbitMQ      RabbitMQSettings      `koanf:"rabbitmq" json:"rabbitmq"`
	PrometheusURL string                `koanf:"prometheus_url" json:"prometheus_url" validate:"omitempty,url"`
	Metrics       MetricsSettings       `koanf:"metrics" json:"metrics"`
	SkipRabbitMQ  bool                  `koanf:"skip_rabbitmq" json:"skip_rabbitmq"`
	Log           LogSettings           `koanf:"log" json:"log"`
	Observability ObservabilitySettings `koanf:"observability" json:"observability"`

	k *koanf.Koanf
}

// RetrySettings configures the HTTP client's retry policy.
type RetrySettings struct {
	Attempts       int     `koanf:"attempts" json:"attempts" validate:"min=1"`
	BackoffSeconds float64 `koanf:"backoff_seconds" json:"backoff_seconds" validate:"min=0"`
}

// RabbitMQSettings points at the broker used by messaging tests.
type RabbitMQSettings struct {
	URL   string `koanf:"url" json:"url" validate:"omitempty,url"`
	Queue string `koanf:"queue" json:"queue" validate:"required"`
}

// MetricsSettings configures the scrape endpoint.
type MetricsSettings struct {
	Enabled bool `koanf:"enabled" json:"enabled"`
	Port    int  `koanf:"port" json:"port" validate:"min=0,max=65535"`
}

// LogSettings configures the zerolog logger.
type LogSettings struct {
	Level  string `koanf:"level" json:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty"`
}

// ObservabilitySettings configures optional tracing of HTTP calls.
type ObservabilitySettings struct {
	Enabled     bool              `koanf:"enabled" json:"enabled"`
	ServiceName string            `koanf:"service_name" json:"service_name" validate:"required_if=Enabled true"`
	Endpoint    string            `koanf:"endpoint" json:"endpoint"`
	Protocol    string            `koanf:"protocol" json:"protocol" validate:"omitempty,oneof=http grpc"`
	Insecure    bool              `koanf:"insecure" json:"insecure"`
	SampleRate  float64           `koanf:"sample_rate" json:"sample_rate" validate:"min=0,max=1"`
	Headers     map[string]string `koanf:"headers" json:"headers"`
}

// TimeoutDuration returns Timeout as a duration.
func (s *Settings) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// Backoff returns BackoffSeconds as a duration.
func (r RetrySettings) Backoff() time.Duration {
	return time.Duration(r.BackoffSeconds * float64(time.Second))
}
