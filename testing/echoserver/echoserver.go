// Package echoserver is an in-process, httpbin-compatible echo service built on echo.
// It serves the subset of endpoints the harness exercises so suites can run
// without a container, and can inject connection failures to drive retries.
package echoserver

import (
	"crypto/rand"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-bricks-harness/logger"
)

const (
	// MaxBytes caps /bytes/:n like httpbin does
	MaxBytes = 100 * 1024

	// MaxDelay caps /delay/:n like httpbin does
	MaxDelay = 10 * time.Second

	serviceName      = "echoserver"
	burstMultiplier  = 2
	rateLimitCleanup = 3 * time.Minute
)

// Option customizes a Server built by New or Start
type Option func(*options)

type options struct {
	rps            int
	tracerProvider trace.TracerProvider
}

// WithRateLimit answers 429 once a client exceeds rps requests per second.
// Zero or negative disables limiting.
func WithRateLimit(rps int) Option {
	return func(o *options) {
		o.rps = rps
	}
}

// WithTracing records a server span per request on tp, continuing any
// W3C trace context the caller sent.
func WithTracing(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// Server is a running echo service
type Server struct {
	echo     *echo.Echo
	http     *httptest.Server
	log      logger.Logger
	hits     atomic.Int64
	failures atomic.Int64
}

// New builds the echo service without starting it
func New(log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.Nop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, log: log}
	if o.tracerProvider != nil {
		e.Use(otelecho.Middleware(serviceName,
			otelecho.WithTracerProvider(o.tracerProvider),
			otelecho.WithPropagators(propagation.TraceContext{}),
		))
	}
	e.Use(s.countHits, s.injectFailures)
	if o.rps > 0 {
		e.Use(rateLimit(o.rps))
	}

	e.GET("/get", s.handleGet)
	e.GET("/headers", s.handleHeaders)
	e.POST("/post", s.handleBody)
	e.Any("/anything", s.handleAnything)
	e.Any("/anything/*", s.handleAnything)
	e.GET("/bytes/:n", s.handleBytes)
	e.Any("/status/:code", s.handleStatus)
	e.GET("/delay/:n", s.handleDelay)

	return s
}

// Start serves on a random loopback port
func Start(log logger.Logger, opts ...Option) *Server {
	s := New(log, opts...)
	s.http = httptest.NewServer(s.echo)
	s.log.Debug().Str("url", s.http.URL).Msg("echo server started")
	return s
}

// Handler exposes the router for tests that bring their own listener
func (s *Server) Handler() nethttp.Handler {
	return s.echo
}

// URL returns the base URL of a started server
func (s *Server) URL() string {
	return s.http.URL
}

// Close stops a started server
func (s *Server) Close() {
	if s.http != nil {
		s.http.Close()
	}
}

// Hits returns the number of requests received, failed ones included
func (s *Server) Hits() int64 {
	return s.hits.Load()
}

// FailNext makes the next n requests drop their connection without a response
func (s *Server) FailNext(n int) {
	s.failures.Store(int64(n))
}

func rateLimit(rps int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(rps),
		Burst:     rps * burstMultiplier,
		ExpiresIn: rateLimitCleanup,
	})
	deny := func(c echo.Context, _ string, _ error) error {
		return c.JSON(nethttp.StatusTooManyRequests, map[string]any{
			"message": "Too many requests",
			"status":  nethttp.StatusTooManyRequests,
		})
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store:        store,
		ErrorHandler: func(c echo.Context, err error) error { return deny(c, "", err) },
		DenyHandler:  deny,
	})
}

func (s *Server) countHits(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.hits.Add(1)
		return next(c)
	}
}

func (s *Server) injectFailures(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		for {
			remaining := s.failures.Load()
			if remaining <= 0 {
				return next(c)
			}
			if s.failures.CompareAndSwap(remaining, remaining-1) {
				break
			}
		}

		hj, ok := c.Response().Writer.(nethttp.Hijacker)
		if !ok {
			return echo.NewHTTPError(nethttp.StatusInternalServerError, "connection cannot be hijacked")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return err
		}
		s.log.Debug().Str("path", c.Request().URL.Path).Msg("dropping connection")
		return conn.Close()
	}
}

// echoBody is the httpbin response envelope. Empty fields are omitted per endpoint.
type echoBody struct {
	Args    map[string]string `json:"args"`
	Data    *string           `json:"data,omitempty"`
	Form    map[string]string `json:"form,omitempty"`
	JSON    any               `json:"json"`
	Headers map[string]string `json:"headers"`
	Method  string            `json:"method,omitempty"`
	Origin  string            `json:"origin"`
	URL     string            `json:"url"`
}

func (s *Server) handleGet(c echo.Context) error {
	return c.JSON(nethttp.StatusOK, s.envelope(c))
}

func (s *Server) handleHeaders(c echo.Context) error {
	return c.JSON(nethttp.StatusOK, map[string]any{"headers": flattenHeaders(c.Request().Header)})
}

func (s *Server) handleBody(c echo.Context) error {
	body, err := s.envelopeWithBody(c)
	if err != nil {
		return err
	}
	return c.JSON(nethttp.StatusOK, body)
}

func (s *Server) handleAnything(c echo.Context) error {
	body, err := s.envelopeWithBody(c)
	if err != nil {
		return err
	}
	body.Method = c.Request().Method
	return c.JSON(nethttp.StatusOK, body)
}

func (s *Server) handleBytes(c echo.Context) error {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 0 {
		return echo.NewHTTPError(nethttp.StatusBadRequest, "n must be a non-negative integer")
	}
	n = min(n, MaxBytes)

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	return c.Blob(nethttp.StatusOK, echo.MIMEOctetStream, buf)
}

func (s *Server) handleStatus(c echo.Context) error {
	code, err := strconv.Atoi(c.Param("code"))
	if err != nil || code < 100 || code > 599 {
		return echo.NewHTTPError(nethttp.StatusBadRequest, "invalid status code")
	}
	return c.NoContent(code)
}

func (s *Server) handleDelay(c echo.Context) error {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 0 {
		return echo.NewHTTPError(nethttp.StatusBadRequest, "n must be a non-negative integer")
	}
	delay := min(time.Duration(n)*time.Second, MaxDelay)

	select {
	case <-time.After(delay):
	case <-c.Request().Context().Done():
		return c.Request().Context().Err()
	}
	return c.JSON(nethttp.StatusOK, s.envelope(c))
}

func (s *Server) envelope(c echo.Context) *echoBody {
	req := c.Request()
	return &echoBody{
		Args:    flattenValues(req.URL.Query()),
		Headers: flattenHeaders(req.Header),
		Origin:  c.RealIP(),
		URL:     c.Scheme() + "://" + req.Host + req.URL.RequestURI(),
	}
}

func (s *Server) envelopeWithBody(c echo.Context) (*echoBody, error) {
	body := s.envelope(c)
	req := c.Request()

	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, echo.NewHTTPError(nethttp.StatusBadRequest, "unreadable body")
	}

	data := ""
	body.Form = map[string]string{}

	contentType := req.Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(contentType, echo.MIMEApplicationForm):
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, echo.NewHTTPError(nethttp.StatusBadRequest, "malformed form body")
		}
		body.Form = flattenValues(form)
	default:
		data = string(raw)
		if len(raw) > 0 {
			var decoded any
			if json.Unmarshal(raw, &decoded) == nil {
				body.JSON = decoded
			}
		}
	}
	body.Data = &data
	return body, nil
}

func flattenValues(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = strings.Join(v, ",")
	}
	return out
}

func flattenHeaders(h nethttp.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ",")
	}
	return out
}
