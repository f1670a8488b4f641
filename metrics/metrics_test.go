package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-harness/retry"
)

func TestRetryObserverCountsScheduledRetries(t *testing.T) {
	rec := NewRecorder()

	r := retry.MustNew(retry.Policy{Attempts: 3, Backoff: 0}, retry.WithObserver(rec.RetryObserver()))
	err := r.Execute("always fails", func() error { return errors.New("boom") })
	require.Error(t, err)

	// Three attempts schedule two retries
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.retries))

	rec.IncRetries()
	assert.Equal(t, float64(3), testutil.ToFloat64(rec.retries))
}

func TestResponseInterceptorCountsByMethodAndCode(t *testing.T) {
	rec := NewRecorder()
	intercept := rec.ResponseInterceptor()

	req := httptest.NewRequest(nethttp.MethodGet, "/get", nil)
	require.NoError(t, intercept(context.Background(), req, &nethttp.Response{StatusCode: 200}))
	require.NoError(t, intercept(context.Background(), req, &nethttp.Response{StatusCode: 200}))
	require.NoError(t, intercept(context.Background(), req, &nethttp.Response{StatusCode: 503}))

	assert.Equal(t, float64(2), testutil.ToFloat64(rec.requests.WithLabelValues("GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.requests.WithLabelValues("GET", "503")))
}

func TestObserveProbe(t *testing.T) {
	rec := NewRecorder()

	rec.ObserveProbe("amqp://a", false)
	rec.ObserveProbe("amqp://b", false)
	rec.ObserveProbe("amqp://c", true)

	assert.Equal(t, float64(2), testutil.ToFloat64(rec.probes.WithLabelValues(ProbeUnreachable)))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.probes.WithLabelValues(ProbeReachable)))
}

func TestHandlerExposesRetryCounter(t *testing.T) {
	rec := NewRecorder()
	rec.IncRetries()

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))

	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_retries_total 1")
}

func TestServerLifecycle(t *testing.T) {
	rec := NewRecorder()
	rec.IncRetries()

	srv := NewServer("127.0.0.1", 0, rec, nil)
	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerStarted)

	client := &nethttp.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(srv.URL())
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), RetriesTotalName))

	health, err := client.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, nethttp.StatusOK, health.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	_, err = client.Get(srv.URL())
	assert.Error(t, err)
}

func TestServerStartReportsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	srv := NewServer("127.0.0.1", port, NewRecorder(), nil)

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics server listen")
}

func TestShutdownWithoutStartIsNoop(t *testing.T) {
	srv := NewServer("", DefaultPort, NewRecorder(), nil)
	assert.NoError(t, srv.Shutdown(context.Background()))
	assert.Equal(t, ":8001", srv.Addr())
}
