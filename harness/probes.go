package harness

import (
	"context"
	"testing"

	"github.com/gaborage/go-bricks-harness/http"
	"github.com/gaborage/go-bricks-harness/logger"
	"github.com/gaborage/go-bricks-harness/messaging"
)

// HTTPTargetAvailable issues one GET /get with a short timeout and no retries.
// Any transport failure or non-2xx status means unavailable.
func (s *Session) HTTPTargetAvailable(ctx context.Context) bool {
	client, err := http.NewBuilder(s.Settings.BaseURL, s.Logger).
		WithTimeout(TargetProbeTimeout).
		WithRetry(1, 0).
		Build()
	if err != nil {
		s.Logger.Warn().Err(err).Msg("cannot build target probe client")
		return false
	}
	return TargetAvailable(ctx, client, s.Logger)
}

// TargetAvailable reports whether client answers GET /get with a 2xx status
func TargetAvailable(ctx context.Context, client http.Client, log logger.Logger) bool {
	resp, err := client.Get(ctx, "/get", nil, nil)
	if err != nil {
		if log != nil {
			log.Warn().Str("base_url", client.BaseURL()).Err(err).Msg("HTTP target unavailable")
		}
		return false
	}
	return http.IsSuccessStatus(resp.StatusCode)
}

// BrokerURL returns the first reachable broker among the candidates for the
// configured URL. skip_rabbitmq short-circuits to unavailable without probing.
// The answer is computed once per session.
func (s *Session) BrokerURL(ctx context.Context) (string, bool) {
	s.brokerOnce.Do(func() {
		if s.Settings.SkipRabbitMQ {
			s.Logger.Info().Msg("broker probing disabled by skip_rabbitmq")
			return
		}
		s.brokerURL, s.brokerOK = s.probe.Available(ctx, messaging.CandidateURLs(s.Settings.RabbitMQ.URL)...)
	})
	return s.brokerURL, s.brokerOK
}

// RequireHTTPTarget skips t when the HTTP target does not answer
func RequireHTTPTarget(t testing.TB, s *Session) {
	t.Helper()
	if !s.HTTPTargetAvailable(context.Background()) {
		t.Skipf("HTTP target %s is not available", s.Settings.BaseURL)
	}
}

// RequireBroker skips t when no broker is reachable and returns the broker URL otherwise
func RequireBroker(t testing.TB, s *Session) string {
	t.Helper()
	url, ok := s.BrokerURL(context.Background())
	if !ok {
		t.Skip("RabbitMQ is not available")
	}
	return url
}
