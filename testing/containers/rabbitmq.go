//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RabbitMQConfig holds configuration for the RabbitMQ test container
type RabbitMQConfig struct {
	// ImageTag specifies the RabbitMQ version (default: "3.13-management-alpine")
	ImageTag string
	Username string
	Password string
	// StartupTimeout for container initialization (default: 60 seconds)
	StartupTimeout time.Duration
}

// DefaultRabbitMQConfig returns the guest/guest broker configuration the
// harness fallback URLs assume.
func DefaultRabbitMQConfig() *RabbitMQConfig {
	return &RabbitMQConfig{
		ImageTag:       "3.13-management-alpine",
		Username:       "guest",
		Password:       "guest",
		StartupTimeout: 60 * time.Second,
	}
}

// RabbitMQ is a running broker container
type RabbitMQ struct {
	container *rabbitmq.RabbitMQContainer
	brokerURL string
}

// StartRabbitMQ starts a broker, skipping t when Docker is unavailable. The
// container is terminated when t finishes.
func StartRabbitMQ(ctx context.Context, t testing.TB, cfg *RabbitMQConfig) (*RabbitMQ, error) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultRabbitMQConfig()
	}
	requireDocker(ctx, t)

	c, err := rabbitmq.Run(ctx,
		"rabbitmq:"+cfg.ImageTag,
		rabbitmq.WithAdminUsername(cfg.Username),
		rabbitmq.WithAdminPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start RabbitMQ container: %w", err)
	}
	terminateOnCleanup(t, "RabbitMQ", c)

	amqpURL, err := c.AmqpURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get RabbitMQ AMQP URL: %w", err)
	}

	t.Logf("RabbitMQ container started at %s", amqpURL)
	return &RabbitMQ{container: c, brokerURL: amqpURL}, nil
}

// MustStartRabbitMQ is StartRabbitMQ that fails t on error
func MustStartRabbitMQ(ctx context.Context, t testing.TB, cfg *RabbitMQConfig) *RabbitMQ {
	t.Helper()
	r, err := StartRabbitMQ(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start RabbitMQ container: %v", err)
	}
	return r
}

// BrokerURL returns the AMQP URL of the mapped port
func (r *RabbitMQ) BrokerURL() string {
	return r.brokerURL
}
