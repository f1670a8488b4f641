package observability

import (
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that pretty-prints spans to stdout.
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentLocal is the default environment name.
	EnvironmentLocal = "local"
)

// Config configures tracing for a harness session.
type Config struct {
	// Enabled controls whether tracing is active.
	// When false, NewProvider returns a no-op provider.
	Enabled bool

	Service ServiceConfig

	// Environment is reported as deployment.environment.name.
	Environment string

	Trace TraceConfig
}

// ServiceConfig contains service identification metadata.
type ServiceConfig struct {
	// Name is required when tracing is enabled.
	Name    string
	Version string
}

// TraceConfig contains exporter and sampling settings.
type TraceConfig struct {
	// Endpoint is "stdout", a URL for the http protocol, or host:port for grpc.
	Endpoint string
	Protocol string
	Insecure bool
	Headers  map[string]string

	// SampleRate is the ratio of traces kept, in [0, 1]. Zero means the default of 1.
	SampleRate float64

	BatchTimeout  time.Duration
	ExportTimeout time.Duration
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentLocal
	}
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.SampleRate == 0 {
		c.Trace.SampleRate = 1.0
	}

	// Short runs need spans exported before the process exits
	if c.Trace.BatchTimeout == 0 {
		c.Trace.BatchTimeout = 500 * time.Millisecond
	}
	if c.Trace.ExportTimeout == 0 {
		c.Trace.ExportTimeout = 10 * time.Second
	}
	c.Trace.Headers = cloneHeaderMap(c.Trace.Headers)
}

// Validate checks an enabled configuration.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if c.Trace.SampleRate < 0 || c.Trace.SampleRate > 1 {
		return ErrInvalidSampleRate
	}
	if c.Trace.Endpoint == EndpointStdout || c.Trace.Endpoint == "" {
		return nil
	}

	switch c.Trace.Protocol {
	case ProtocolHTTP, ProtocolGRPC, "":
		return validateEndpointFormat(c.Trace.Endpoint, c.Trace.Protocol)
	default:
		return ErrInvalidProtocol
	}
}

// validateEndpointFormat checks that grpc endpoints are host:port and http ones carry a scheme.
func validateEndpointFormat(endpoint, protocol string) error {
	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")

	if protocol == ProtocolGRPC && hasScheme {
		return ErrInvalidEndpointFormat
	}
	if protocol != ProtocolGRPC && !hasScheme {
		return ErrInvalidEndpointFormat
	}
	return nil
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}
