package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	nethttp "net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-harness/logger"
	"github.com/gaborage/go-bricks-harness/requestid"
	"github.com/gaborage/go-bricks-harness/retry"
)

const (
	// DefaultTimeout is the default per-attempt timeout
	DefaultTimeout = 5 * time.Second

	// DefaultAttempts is the default number of tries per request
	DefaultAttempts = retry.DefaultAttempts

	// DefaultBackoff is the default linear backoff unit
	DefaultBackoff = retry.DefaultBackoff

	tracerName = "go-bricks-harness/http"

	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
	contentTypeForm   = "application/x-www-form-urlencoded"
)

// client implements the Client interface
type client struct {
	httpClient           *nethttp.Client
	logger               logger.Logger
	config               *Config
	retrier              *retry.Retrier
	tracer               trace.Tracer
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	callCount            int64
}

// NewClient creates a client for baseURL with the default retry policy
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) (Client, error) {
	return NewBuilder(baseURL, log).WithTimeout(timeout).Build()
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	config       *Config
	logger       logger.Logger
	retryOptions []retry.Option
}

// NewBuilder creates a new client builder for baseURL
func NewBuilder(baseURL string, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: &Config{
			BaseURL:              baseURL,
			Timeout:              DefaultTimeout,
			Attempts:             DefaultAttempts,
			Backoff:              DefaultBackoff,
			RequestInterceptors:  []RequestInterceptor{},
			ResponseInterceptors: []ResponseInterceptor{},
			DefaultHeaders:       make(map[string]string),
		},
		logger: log,
	}
}

// WithTimeout sets the per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetry sets the attempt limit and linear backoff unit
func (b *Builder) WithRetry(attempts int, backoff time.Duration) *Builder {
	b.config.Attempts = attempts
	b.config.Backoff = backoff
	return b
}

// WithRetryOptions passes options (sleeper, observers) to the client's retrier.
// The retry predicate is always IsTransportError.
func (b *Builder) WithRetryOptions(opts ...retry.Option) *Builder {
	b.retryOptions = append(b.retryOptions, opts...)
	return b
}

// WithStrictStatus makes Get and Post return an HTTPError for non-2xx responses
func (b *Builder) WithStrictStatus() *Builder {
	b.config.StrictStatus = true
	return b
}

// WithBasicAuth sets basic authentication credentials
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	b.config.BasicAuth = &BasicAuth{Username: username, Password: password}
	return b
}

// WithDefaultHeader adds a header sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor adds a request interceptor
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// WithTransport replaces the default round tripper
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.config.Transport = rt
	return b
}

// Build validates the configuration and creates the client
func (b *Builder) Build() (Client, error) {
	if err := validateBaseURL(b.config.BaseURL); err != nil {
		return nil, err
	}
	if b.config.Timeout <= 0 {
		return nil, NewValidationError("timeout must be positive", "timeout")
	}

	opts := append([]retry.Option{retry.WithLogger(b.logger)}, b.retryOptions...)
	retrier, err := retry.New(retry.Policy{
		Attempts:  b.config.Attempts,
		Backoff:   b.config.Backoff,
		Retryable: IsTransportError,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("client retry policy: %w", err)
	}

	cfg := b.config.clone()
	return &client{
		httpClient: &nethttp.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		logger:               b.logger,
		config:               cfg,
		retrier:              retrier,
		tracer:               otel.Tracer(tracerName),
		requestInterceptors:  cfg.RequestInterceptors,
		responseInterceptors: cfg.ResponseInterceptors,
	}, nil
}

// clone detaches a built client from later builder calls
func (c *Config) clone() *Config {
	cp := *c
	cp.DefaultHeaders = maps.Clone(c.DefaultHeaders)
	cp.RequestInterceptors = slices.Clone(c.RequestInterceptors)
	cp.ResponseInterceptors = slices.Clone(c.ResponseInterceptors)
	if c.BasicAuth != nil {
		auth := *c.BasicAuth
		cp.BasicAuth = &auth
	}
	return &cp
}

// BaseURL returns the configured base URL
func (c *client) BaseURL() string {
	return c.config.BaseURL
}

// Timeout returns the per-attempt timeout
func (c *client) Timeout() time.Duration {
	return c.config.Timeout
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, path string, params, headers map[string]string) (*Response, error) {
	return c.do(ctx, nethttp.MethodGet, path, params, nil, headers)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, path string, body *Body, headers map[string]string) (*Response, error) {
	return c.do(ctx, nethttp.MethodPost, path, nil, body, headers)
}

func (c *client) do(ctx context.Context, method, path string, params map[string]string, body *Body, headers map[string]string) (*Response, error) {
	target, err := JoinURL(c.config.BaseURL, path, params)
	if err != nil {
		return nil, err
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	// retries of one call share its request ID
	ctx, _ = requestid.Ensure(ctx)

	start := time.Now()
	callCount := atomic.AddInt64(&c.callCount, 1)
	attempts := 0

	resp, err := retry.Do(c.retrier, method+" "+path, func() (*Response, error) {
		attempts++
		return c.attempt(ctx, method, target, payload, contentType, headers)
	})
	if err != nil {
		return nil, err
	}

	resp.Stats = Stats{
		ElapsedTime: time.Since(start),
		Attempts:    attempts,
		CallCount:   callCount,
	}
	c.logResponse(method, target, resp)

	if c.config.StrictStatus {
		if statusErr := resp.EnsureSuccess(); statusErr != nil {
			return resp, statusErr
		}
	}
	return resp, nil
}

// attempt performs one network exchange
func (c *client) attempt(ctx context.Context, method, target string, payload []byte, contentType string, headers map[string]string) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
		),
	)
	defer span.End()

	httpReq, err := c.buildRequest(ctx, method, target, payload, contentType, headers)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	c.logRequest(method, target, headers, payload)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		err = c.classifyTransportError(ctx, err)
		recordSpanError(span, err)
		return nil, err
	}

	resp, err := c.buildResponse(ctx, httpReq, httpResp)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, nethttp.StatusText(resp.StatusCode))
	}
	return resp, nil
}

// classifyTransportError maps a failed round trip onto the client error taxonomy.
// Cancellation of the caller's context is returned as-is so it is never retried.
func (c *client) classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if isTimeout(err) {
		return NewTimeoutError("request timeout", c.config.Timeout, err)
	}
	return NewNetworkError("request execution failed", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// JoinURL strips trailing slashes from base and appends path, which must start
// with "/". Params are appended as a query string, after any query already in path.
func JoinURL(base, path string, params map[string]string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", NewValidationError("path must begin with '/'", "path")
	}

	target := strings.TrimRight(base, "/") + path
	if len(params) == 0 {
		return target, nil
	}

	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return target + sep + values.Encode(), nil
}

func validateBaseURL(base string) error {
	if base == "" {
		return NewValidationError("base URL cannot be empty", "base_url")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewValidationError(fmt.Sprintf("base URL %q must include scheme and host", base), "base_url")
	}
	return nil
}

func encodeBody(body *Body) ([]byte, string, error) {
	if body == nil {
		return nil, "", nil
	}
	if body.JSON != nil && body.Form != nil {
		return nil, "", NewValidationError("json and form bodies are mutually exclusive", "body")
	}
	if body.Form != nil {
		return []byte(body.Form.Encode()), contentTypeForm, nil
	}
	if body.JSON != nil {
		data, err := json.Marshal(body.JSON)
		if err != nil {
			return nil, "", NewValidationError(fmt.Sprintf("json body cannot be encoded: %v", err), "body")
		}
		return data, contentTypeJSON, nil
	}
	return nil, "", nil
}

// applyHeaders applies default, request and content headers
func (c *client) applyHeaders(httpReq *nethttp.Request, headers map[string]string, contentType string) {
	for key, value := range c.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}

	// Request-specific headers override defaults
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	if contentType != "" && httpReq.Header.Get(contentTypeHeader) == "" {
		httpReq.Header.Set(contentTypeHeader, contentType)
	}

	if httpReq.Header.Get(HeaderXRequestID) == "" {
		if id, ok := requestid.FromContext(httpReq.Context()); ok {
			httpReq.Header.Set(HeaderXRequestID, id)
		}
	}
}

// buildRequest constructs the *http.Request for one attempt
func (c *client) buildRequest(ctx context.Context, method, target string, payload []byte, contentType string, headers map[string]string) (*nethttp.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid request: %v", err), "url")
	}

	c.applyHeaders(httpReq, headers, contentType)
	if auth := c.config.BasicAuth; auth != nil {
		httpReq.SetBasicAuth(auth.Username, auth.Password)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, NewInterceptorError("request interceptor failed", "request", err)
		}
	}
	return httpReq, nil
}

// buildResponse runs response interceptors and reads the body
func (c *client) buildResponse(ctx context.Context, httpReq *nethttp.Request, httpResp *nethttp.Response) (*Response, error) {
	defer httpResp.Body.Close()

	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, httpReq, httpResp); err != nil {
			return nil, NewInterceptorError("response interceptor failed", "response", err)
		}
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}, nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// logRequest logs the outgoing request
func (c *client) logRequest(method, target string, headers map[string]string, payload []byte) {
	logEvent := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", method).
		Str("url", target)

	if len(headers) > 0 {
		logEvent = logEvent.Interface("headers", headers)
	}
	if len(payload) > 0 {
		logEvent = withLoggedBody(logEvent, payload)
	}

	logEvent.Msg("echo client request")
}

// withLoggedBody adds JSON payloads as decoded fields so the sensitive-data
// filter sees their keys. Anything else is logged by size only.
func withLoggedBody(logEvent logger.LogEvent, payload []byte) logger.LogEvent {
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err == nil {
		return logEvent.Interface("body", decoded)
	}
	return logEvent.Int("body_bytes", len(payload))
}

// logResponse logs the final response of a call
func (c *client) logResponse(method, target string, resp *Response) {
	c.logger.Info().
		Str("direction", "inbound").
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Int("attempts", resp.Stats.Attempts).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Msg("echo client response")
}
