package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-harness/logger"
	"github.com/gaborage/go-bricks-harness/requestid"
)

const (
	// DefaultDialTimeout bounds a dial when the context carries no deadline
	DefaultDialTimeout = 5 * time.Second

	messagingTracerName     = "go-bricks-harness/messaging"
	messagingSystemRabbitMQ = "rabbitmq"
	operationPublish        = "publish"
	operationReceive        = "receive"

	contentTypeJSON = "application/json"
	requestIDHeader = "x-request-id"
)

// ErrNotConnected is returned by operations on a closed QueueClient
var ErrNotConnected = errors.New("not connected to AMQP broker")

// Message is a delivery fetched with Get
type Message struct {
	Body          []byte
	ContentType   string
	CorrelationID string
	MessageID     string
	Headers       map[string]any
}

// QueueClient owns one connection and one channel to the broker
type QueueClient struct {
	m      sync.Mutex
	url    string
	log    logger.Logger
	conn   amqpConnection
	ch     amqpChannel
	tracer trace.Tracer
}

// Dial connects to brokerURL and opens a channel. The dial timeout is taken from
// ctx's deadline, or DefaultDialTimeout when there is none.
func Dial(ctx context.Context, brokerURL string, log logger.Logger) (*QueueClient, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := DefaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	redacted := RedactURL(brokerURL)
	conn, err := amqpDialFunc(brokerURL, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", redacted, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel on %s: %w", redacted, err)
	}

	log.Debug().Str("broker", redacted).Msg("AMQP connection established")

	return &QueueClient{
		url:    redacted,
		log:    log,
		conn:   conn,
		ch:     ch,
		tracer: otel.Tracer(messagingTracerName),
	}, nil
}

// DeclareQueue declares a non-durable queue that the broker deletes once unused
func (c *QueueClient) DeclareQueue(name string) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(name, false, true, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", name, err)
	}
	c.log.Debug().Str("queue", name).Msg("queue declared")
	return nil
}

// Publish sends body to queue through the default exchange
func (c *QueueClient) Publish(ctx context.Context, queue string, body []byte, correlationID string) error {
	ch, err := c.channel()
	if err != nil {
		return err
	}

	ctx, span := c.tracer.Start(ctx, queue+" "+operationPublish,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String(string(semconv.MessagingSystemKey), messagingSystemRabbitMQ),
			semconv.MessagingOperationName(operationPublish),
			semconv.MessagingDestinationName(queue),
			semconv.MessagingMessageBodySize(len(body)),
		),
	)
	defer span.End()

	publishing := amqp.Publishing{
		ContentType:   contentTypeJSON,
		CorrelationId: correlationID,
		MessageId:     uuid.NewString(),
		Timestamp:     time.Now(),
		Headers:       amqp.Table{},
		Body:          body,
	}
	if id, ok := requestid.FromContext(ctx); ok {
		publishing.Headers[requestIDHeader] = id
	}
	otel.GetTextMapPropagator().Inject(ctx, tableCarrier(publishing.Headers))

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish to %q: %w", queue, err)
	}

	c.log.Debug().
		Str("queue", queue).
		Str("correlation_id", correlationID).
		Int("bytes", len(body)).
		Msg("message published")
	return nil
}

// Get fetches at most one message from queue with auto-ack. It never blocks
// waiting for a delivery; ok is false when the queue is empty.
func (c *QueueClient) Get(queue string) (msg Message, ok bool, err error) {
	ch, err := c.channel()
	if err != nil {
		return Message{}, false, err
	}

	delivery, ok, err := ch.Get(queue, true)
	if err != nil {
		return Message{}, false, fmt.Errorf("get from %q: %w", queue, err)
	}
	if !ok {
		return Message{}, false, nil
	}

	ctx := otel.GetTextMapPropagator().Extract(context.Background(), tableCarrier(delivery.Headers))
	_, span := c.tracer.Start(ctx, queue+" "+operationReceive,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String(string(semconv.MessagingSystemKey), messagingSystemRabbitMQ),
			semconv.MessagingOperationName(operationReceive),
			semconv.MessagingDestinationName(queue),
			semconv.MessagingMessageBodySize(len(delivery.Body)),
		),
	)
	span.End()

	return Message{
		Body:          delivery.Body,
		ContentType:   delivery.ContentType,
		CorrelationID: delivery.CorrelationId,
		MessageID:     delivery.MessageId,
		Headers:       delivery.Headers,
	}, true, nil
}

// Close closes the channel and the connection. It is safe to call more than once.
func (c *QueueClient) Close() error {
	c.m.Lock()
	defer c.m.Unlock()

	if c.conn == nil {
		return nil
	}

	var errs []error
	if c.ch != nil {
		if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	c.conn, c.ch = nil, nil

	c.log.Debug().Str("broker", c.url).Msg("AMQP connection closed")
	return errors.Join(errs...)
}

func (c *QueueClient) channel() (amqpChannel, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.conn == nil || c.ch == nil || c.conn.IsClosed() {
		return nil, ErrNotConnected
	}
	return c.ch, nil
}

// probePayload is the smoke-test message body
type probePayload struct {
	Hello string `json:"hello"`
	ID    string `json:"id"`
}

// NewProbeMessage returns a {"hello":"world","id":...} body and its correlation id
func NewProbeMessage() (body []byte, correlationID string) {
	correlationID = uuid.NewString()
	// Marshalling a struct of two strings cannot fail
	body, _ = json.Marshal(probePayload{Hello: "world", ID: correlationID})
	return body, correlationID
}

// ProbeID extracts the id from a probe message body
func ProbeID(body []byte) (string, error) {
	var p probePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("decode probe message: %w", err)
	}
	return p.ID, nil
}

// tableCarrier adapts AMQP headers to the OpenTelemetry text map carrier
type tableCarrier amqp.Table

func (t tableCarrier) Get(key string) string {
	if v, ok := t[key].(string); ok {
		return v
	}
	return ""
}

func (t tableCarrier) Set(key, value string) {
	t[key] = value
}

func (t tableCarrier) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	return keys
}

var _ propagation.TextMapCarrier = tableCarrier(nil)
