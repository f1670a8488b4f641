package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Enabled: true, Service: ServiceConfig{Name: "harness"}}
	cfg.ApplyDefaults()

	assert.Equal(t, "unknown", cfg.Service.Version)
	assert.Equal(t, EnvironmentLocal, cfg.Environment)
	assert.Equal(t, EndpointStdout, cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	assert.InDelta(t, 1.0, cfg.Trace.SampleRate, 0)
	assert.Equal(t, 500*time.Millisecond, cfg.Trace.BatchTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want error
	}{
		{name: "nil", cfg: nil, want: ErrNilConfig},
		{name: "disabled skips checks", cfg: &Config{Trace: TraceConfig{SampleRate: 7}}},
		{name: "missing service", cfg: &Config{Enabled: true}, want: ErrMissingServiceName},
		{name: "sample rate", cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{SampleRate: 1.5}}, want: ErrInvalidSampleRate},
		{name: "stdout", cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{Endpoint: EndpointStdout}}},
		{name: "http needs scheme", cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{Endpoint: "collector:4318", Protocol: ProtocolHTTP}}, want: ErrInvalidEndpointFormat},
		{name: "grpc rejects scheme", cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{Endpoint: "http://collector:4317", Protocol: ProtocolGRPC}}, want: ErrInvalidEndpointFormat},
		{name: "grpc host port", cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{Endpoint: "collector:4317", Protocol: ProtocolGRPC}}},
		{name: "unknown protocol", cfg: &Config{Enabled: true, Service: ServiceConfig{Name: "s"}, Trace: TraceConfig{Endpoint: "collector:4317", Protocol: "udp"}}, want: ErrInvalidProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewProviderDisabledIsNoop(t *testing.T) {
	restoreGlobals(t)
	before := otel.GetTracerProvider()

	p, err := NewProvider(&Config{}, nil)
	require.NoError(t, err)

	assert.IsType(t, noop.NewTracerProvider(), p.TracerProvider())
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, Shutdown(p, time.Second))
}

func TestNewProviderRejectsInvalidConfig(t *testing.T) {
	_, err := NewProvider(&Config{Enabled: true}, nil)
	assert.ErrorIs(t, err, ErrMissingServiceName)

	_, err = NewProvider(nil, nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNewProviderStdoutInstallsGlobals(t *testing.T) {
	restoreGlobals(t)

	p, err := NewProvider(&Config{
		Enabled: true,
		Service: ServiceConfig{Name: "harness-test"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, p.TracerProvider(), otel.GetTracerProvider())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")

	_, span := otel.Tracer("test").Start(context.Background(), "unit")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, p.ForceFlush(context.Background()))
	require.NoError(t, Shutdown(p, time.Second))
}

func TestShutdownNilProvider(t *testing.T) {
	assert.NoError(t, Shutdown(nil, 0))
}
