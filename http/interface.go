package http

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"
	"time"

	"github.com/gaborage/go-bricks-harness/requestid"
)

// HeaderXRequestID is set on every request that does not carry one already
const HeaderXRequestID = requestid.Header

// Client defines the echo-service client
type Client interface {
	// Get issues GET base+path with optional query params and headers.
	Get(ctx context.Context, path string, params, headers map[string]string) (*Response, error)
	// Post issues POST base+path with an optional JSON or form body.
	Post(ctx context.Context, path string, body *Body, headers map[string]string) (*Response, error)
	BaseURL() string
	Timeout() time.Duration
}

// Body is a POST payload. At most one of JSON and Form may be set.
type Body struct {
	JSON any
	Form url.Values
}

// JSONBody wraps v as a JSON request body
func JSONBody(v any) *Body {
	return &Body{JSON: v}
}

// FormBody builds a form body from a flat map
func FormBody(fields map[string]string) *Body {
	form := make(url.Values, len(fields))
	for k, v := range fields {
		form.Set(k, v)
	}
	return &Body{Form: form}
}

// Response is a completed HTTP exchange
type Response struct {
	StatusCode int
	Headers    nethttp.Header
	Body       []byte
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
	CallCount   int64
}

// JSON decodes the response body into v
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Text returns the raw body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// EnsureSuccess returns an HTTPError when the status is not 2xx
func (r *Response) EnsureSuccess() error {
	if IsSuccessStatus(r.StatusCode) {
		return nil
	}
	return NewHTTPError(
		fmt.Sprintf("HTTP request failed with status %d", r.StatusCode),
		r.StatusCode,
		r.Body,
	)
}

// BasicAuth contains basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// RequestInterceptor is called before sending each attempt
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after each attempt receives a response
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the client configuration
type Config struct {
	BaseURL              string
	Timeout              time.Duration
	Attempts             int
	Backoff              time.Duration
	StrictStatus         bool
	BasicAuth            *BasicAuth
	DefaultHeaders       map[string]string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	Transport            nethttp.RoundTripper
}
