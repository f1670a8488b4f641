package metrics

import (
	"context"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gaborage/go-bricks-harness/http"
	"github.com/gaborage/go-bricks-harness/retry"
)

const (
	// RetriesTotalName counts retries scheduled by any retrier wired to the recorder
	RetriesTotalName = "test_retries_total"

	namespace = "harness"
)

// Probe result label values
const (
	ProbeReachable   = "reachable"
	ProbeUnreachable = "unreachable"
)

// Recorder holds the harness collectors
type Recorder struct {
	registry *prometheus.Registry
	retries  prometheus.Counter
	requests *prometheus.CounterVec
	probes   *prometheus.CounterVec
}

// NewRecorder creates a recorder on a fresh registry, including Go runtime
// and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: RetriesTotalName,
			Help: "Total retries",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP exchanges completed by the harness client, by method and status code",
		}, []string{"method", "code"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_probes_total",
			Help:      "Broker availability probes, by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		r.retries,
		r.requests,
		r.probes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the recorder's registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() nethttp.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// IncRetries adds one to test_retries_total
func (r *Recorder) IncRetries() {
	r.retries.Inc()
}

// RetryObserver counts every retry a retrier schedules
func (r *Recorder) RetryObserver() retry.Observer {
	return func(string, int, time.Duration, error) {
		r.retries.Inc()
	}
}

// ResponseInterceptor counts every HTTP response the client receives
func (r *Recorder) ResponseInterceptor() http.ResponseInterceptor {
	return func(_ context.Context, req *nethttp.Request, resp *nethttp.Response) error {
		r.requests.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
		return nil
	}
}

// ObserveProbe records a broker probe outcome. Its signature matches messaging.ProbeObserver.
func (r *Recorder) ObserveProbe(_ string, reachable bool) {
	result := ProbeUnreachable
	if reachable {
		result = ProbeReachable
	}
	r.probes.WithLabelValues(result).Inc()
}
