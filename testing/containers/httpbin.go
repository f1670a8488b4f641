//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const httpbinPort = "80/tcp"

// HTTPBinConfig holds configuration for the httpbin test container
type HTTPBinConfig struct {
	// Image defaults to "kennethreitz/httpbin:latest"
	Image          string
	StartupTimeout time.Duration
}

// DefaultHTTPBinConfig returns the stock httpbin image configuration
func DefaultHTTPBinConfig() *HTTPBinConfig {
	return &HTTPBinConfig{
		Image:          "kennethreitz/httpbin:latest",
		StartupTimeout: 60 * time.Second,
	}
}

// HTTPBin is a running echo service container
type HTTPBin struct {
	container testcontainers.Container
	baseURL   string
}

// StartHTTPBin starts httpbin, skipping t when Docker is unavailable. The
// container is terminated when t finishes.
func StartHTTPBin(ctx context.Context, t testing.TB, cfg *HTTPBinConfig) (*HTTPBin, error) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultHTTPBinConfig()
	}
	requireDocker(ctx, t)

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        cfg.Image,
			ExposedPorts: []string{httpbinPort},
			WaitingFor: wait.ForHTTP("/get").
				WithPort(httpbinPort).
				WithStartupTimeout(cfg.StartupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start httpbin container: %w", err)
	}
	terminateOnCleanup(t, "httpbin", c)

	host, err := c.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get httpbin host: %w", err)
	}
	port, err := c.MappedPort(ctx, httpbinPort)
	if err != nil {
		return nil, fmt.Errorf("failed to get httpbin port: %w", err)
	}

	baseURL := fmt.Sprintf("http://%s:%d", host, port.Int())
	t.Logf("httpbin container started at %s", baseURL)
	return &HTTPBin{container: c, baseURL: baseURL}, nil
}

// MustStartHTTPBin is StartHTTPBin that fails t on error
func MustStartHTTPBin(ctx context.Context, t testing.TB, cfg *HTTPBinConfig) *HTTPBin {
	t.Helper()
	h, err := StartHTTPBin(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start httpbin container: %v", err)
	}
	return h
}

// BaseURL returns the scheme and mapped host:port
func (h *HTTPBin) BaseURL() string {
	return h.baseURL
}
