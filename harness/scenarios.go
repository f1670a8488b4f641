package harness

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-harness/http"
	"github.com/gaborage/go-bricks-harness/messaging"
)

// brokerRoundTripTimeout bounds dial, publish and the polling for the echo
const (
	brokerRoundTripTimeout = 10 * time.Second
	brokerPollInterval     = 100 * time.Millisecond
)

// errMessageNotReceived is returned when the polling deadline passes without a match
var errMessageNotReceived = errors.New("message not received")

type getFunc func(queue string) (messaging.Message, bool, error)

// awaitMessage polls queue until a message with correlationID arrives. A broker
// error ends the wait immediately and is returned unchanged.
func awaitMessage(ctx context.Context, get getFunc, queue, correlationID string, interval time.Duration) (messaging.Message, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		msg, ok, err := get(queue)
		if err != nil {
			return messaging.Message{}, fmt.Errorf("consume from %q: %w", queue, err)
		}
		if ok && msg.CorrelationID == correlationID {
			return msg, nil
		}

		select {
		case <-ctx.Done():
			return messaging.Message{}, fmt.Errorf("%w on %q: %w", errMessageNotReceived, queue, ctx.Err())
		case <-ticker.C:
		}
	}
}

// RunHTTPScenarios runs the echo-service smoke scenarios against the session's target
func RunHTTPScenarios(t *testing.T, s *Session) {
	t.Helper()

	t.Run("get returns json", func(t *testing.T) {
		resp, err := s.Client.Get(context.Background(), "/get", nil, nil)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)

		var body map[string]any
		require.NoError(t, resp.JSON(&body))
		assert.Contains(t, body, "url")
		assert.Contains(t, body, "headers")
	})

	t.Run("bytes returns raw body", func(t *testing.T) {
		resp, err := s.Client.Get(context.Background(), "/bytes/16", nil, nil)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		assert.Len(t, resp.Body, 16)
	})

	t.Run("post echoes json", func(t *testing.T) {
		user := s.FakeUser()
		resp, err := s.Client.Post(context.Background(), "/post", http.JSONBody(user), nil)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)

		var body struct {
			JSON map[string]string `json:"json"`
		}
		require.NoError(t, resp.JSON(&body))
		assert.Equal(t, user.Name, body.JSON["name"])
		assert.Equal(t, user.Email, body.JSON["email"])
	})

	t.Run("anything echoes form", func(t *testing.T) {
		user := s.FakeUser()
		resp, err := s.Client.Post(context.Background(), "/anything/this/path?x=1", http.FormBody(user.Map()), nil)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)

		var body struct {
			Method string            `json:"method"`
			URL    string            `json:"url"`
			Form   map[string]string `json:"form"`
		}
		require.NoError(t, resp.JSON(&body))
		assert.Equal(t, "POST", body.Method)
		assert.Contains(t, body.URL, "/anything/this/path?x=1")
		assert.Equal(t, user.Name, body.Form["name"])
	})

	t.Run("random query params are echoed", func(t *testing.T) {
		params := s.FakeQueryParams(4)
		resp, err := s.Client.Get(context.Background(), "/get", params, nil)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)

		var body struct {
			Args map[string]string `json:"args"`
		}
		require.NoError(t, resp.JSON(&body))
		for k, v := range params {
			assert.Equal(t, v, body.Args[k], "arg %q", k)
		}
	})
}

// RunBrokerScenario publishes a probe message and reads it back. It skips when
// no broker is reachable; once a broker is found, every failure fails the test.
func RunBrokerScenario(t *testing.T, s *Session) {
	t.Helper()

	t.Run("publish and consume", func(t *testing.T) {
		url := RequireBroker(t, s)

		ctx, cancel := context.WithTimeout(context.Background(), brokerRoundTripTimeout)
		defer cancel()

		client, err := messaging.Dial(ctx, url, s.Logger)
		require.NoError(t, err)
		defer client.Close()

		queue := s.Settings.RabbitMQ.Queue
		require.NoError(t, client.DeclareQueue(queue))

		body, corrID := messaging.NewProbeMessage()
		require.NoError(t, client.Publish(ctx, queue, body, corrID))

		msg, err := awaitMessage(ctx, client.Get, queue, corrID, brokerPollInterval)
		require.NoError(t, err)

		id, err := messaging.ProbeID(msg.Body)
		require.NoError(t, err)
		assert.Equal(t, corrID, id)
	})
}
