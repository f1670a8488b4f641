// Package harness wires the configuration, client, metrics and probes into a
// per-run session that integration suites share.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gaborage/go-bricks-harness/config"
	"github.com/gaborage/go-bricks-harness/http"
	"github.com/gaborage/go-bricks-harness/logger"
	"github.com/gaborage/go-bricks-harness/messaging"
	"github.com/gaborage/go-bricks-harness/metrics"
	"github.com/gaborage/go-bricks-harness/observability"
	"github.com/gaborage/go-bricks-harness/retry"
	"github.com/gaborage/go-bricks-harness/testing/fixtures"
)

const (
	// TargetProbeTimeout bounds the single HTTP availability check
	TargetProbeTimeout = 2 * time.Second

	serviceVersion = "dev"
)

// Options control how a session is built. The zero value loads config.yaml
// against the process environment.
type Options struct {
	ConfigPath string

	// Environ replaces the process environment. nil means config.OSEnviron().
	Environ config.Environ

	// Logger replaces the logger built from the log settings.
	Logger logger.Logger

	// MetricsHost is the interface the metrics server binds. Empty binds all.
	MetricsHost string

	// DisableMetricsServer keeps the recorder but never starts the server,
	// whatever metrics.enabled says.
	DisableMetricsServer bool
}

// Session holds everything a suite needs for one run. It is safe for
// concurrent use by parallel tests.
type Session struct {
	Settings *config.Settings
	Logger   logger.Logger
	Client   http.Client
	Metrics  *metrics.Recorder

	metricsServer *metrics.Server
	tracing       observability.Provider
	probe         *messaging.Probe
	faker         *fixtures.Generator

	brokerOnce sync.Once
	brokerURL  string
	brokerOK   bool

	closeOnce sync.Once
	closeErr  error
}

// NewSession loads settings and builds the session's collaborators. The
// metrics server is started only when metrics.enabled is set.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	env := opts.Environ
	if env == nil {
		env = config.OSEnviron()
	}

	settings, err := config.Load(opts.ConfigPath, env)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(settings.Log.Level, settings.Log.Pretty)
	}
	log = log.WithFields(map[string]any{"env": settings.Env})

	tracing, err := observability.NewProvider(tracingConfig(settings), log)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	rec := metrics.NewRecorder()

	client, err := http.NewBuilder(settings.BaseURL, log).
		WithTimeout(settings.TimeoutDuration()).
		WithRetry(settings.Retry.Attempts, settings.Retry.Backoff()).
		WithRetryOptions(retry.WithObserver(rec.RetryObserver())).
		WithResponseInterceptor(rec.ResponseInterceptor()).
		Build()
	if err != nil {
		_ = observability.Shutdown(tracing, 0)
		return nil, fmt.Errorf("http client: %w", err)
	}

	probe := messaging.NewProbe(log)
	probe.Observer = rec.ObserveProbe

	s := &Session{
		Settings: settings,
		Logger:   log,
		Client:   client,
		Metrics:  rec,
		tracing:  tracing,
		probe:    probe,
		faker:    fixtures.NewGenerator(0),
	}

	if settings.Metrics.Enabled && !opts.DisableMetricsServer {
		srv := metrics.NewServer(opts.MetricsHost, settings.Metrics.Port, rec, log)
		if err := srv.Start(ctx); err != nil {
			_ = observability.Shutdown(tracing, 0)
			return nil, err
		}
		s.metricsServer = srv
	}

	log.Info().
		Str("base_url", settings.BaseURL).
		Int("timeout_seconds", settings.Timeout).
		Int("retry_attempts", settings.Retry.Attempts).
		Bool("metrics", settings.Metrics.Enabled).
		Msg("harness session ready")

	return s, nil
}

func tracingConfig(s *config.Settings) *observability.Config {
	o := s.Observability
	return &observability.Config{
		Enabled:     o.Enabled,
		Service:     observability.ServiceConfig{Name: o.ServiceName, Version: serviceVersion},
		Environment: s.Env,
		Trace: observability.TraceConfig{
			Endpoint:   o.Endpoint,
			Protocol:   o.Protocol,
			Insecure:   o.Insecure,
			Headers:    o.Headers,
			SampleRate: o.SampleRate,
		},
	}
}

// MetricsAddr returns the metrics server address, or "" when it is not running
func (s *Session) MetricsAddr() string {
	if s.metricsServer == nil {
		return ""
	}
	return s.metricsServer.Addr()
}

// FakeUser returns a fresh synthetic user
func (s *Session) FakeUser() fixtures.User {
	return s.faker.User()
}

// FakeQueryParams returns up to n random query parameters
func (s *Session) FakeQueryParams(n int) map[string]string {
	return s.faker.QueryParams(n)
}

// Close stops the metrics server and flushes tracing. Later calls return the
// first call's result.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.metricsServer != nil {
			if err := s.metricsServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server: %w", err))
			}
		}
		if err := s.tracing.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)
		s.Logger.Debug().Msg("harness session closed")
	})
	return s.closeErr
}
