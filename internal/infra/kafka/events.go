package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

const schemaVersion = "1"

// Message headers set on every record.
const (
	headerEventType = "event-type"
	headerSchema    = "schema-version"
	headerTraceID   = "trace-id"
)

// envelope is the JSON record value.
type envelope struct {
	EventID    string       `json:"event_id"`
	EventType  string       `json:"event_type"`
	UserID     string       `json:"user_id"`
	OccurredAt time.Time    `json:"occurred_at"`
	Source     string       `json:"source"`
	Payload    domain.Event `json:"payload"`
}

// Publisher writes account events to Kafka, one topic per event type, keyed
// by user id.
type Publisher struct {
	producer *Producer
	source   string
	now      func() time.Time
}

var _ port.EventPublisher = (*Publisher)(nil)

// NewPublisher returns a publisher stamping source on every envelope.
func NewPublisher(producer *Producer, source string) *Publisher {
	return &Publisher{
		producer: producer,
		source:   source,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Publish queues event on the producer. It blocks only while the producer
// input is full and gives up when ctx ends.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	msg, err := p.message(ctx, event)
	if err != nil {
		return err
	}
	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s event: %w", event.Type(), ctx.Err())
	}
}

func (p *Publisher) message(ctx context.Context, event domain.Event) (*sarama.ProducerMessage, error) {
	header := event.Header()
	if header.ID == "" {
		header.ID = uuid.NewString()
	}
	if header.OccurredAt.IsZero() {
		header.OccurredAt = p.now()
	}

	value, err := json.Marshal(envelope{
		EventID:    header.ID,
		EventType:  event.Type(),
		UserID:     header.UserID,
		OccurredAt: header.OccurredAt.UTC(),
		Source:     p.source,
		Payload:    event,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type(), err)
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(headerEventType), Value: []byte(event.Type())},
		{Key: []byte(headerSchema), Value: []byte(schemaVersion)},
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		headers = append(headers, sarama.RecordHeader{Key: []byte(headerTraceID), Value: []byte(sc.TraceID().String())})
	}

	return &sarama.ProducerMessage{
		Topic:   p.producer.Topic(event.Type()),
		Key:     sarama.StringEncoder(header.UserID),
		Value:   sarama.ByteEncoder(value),
		Headers: headers,
	}, nil
}

// LogPublisher writes events to the log. It stands in when no brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.Event) error {
	header := event.Header()
	p.logger.Info("event",
		zap.String("event_type", event.Type()),
		zap.String("user_id", header.UserID),
		zap.Time("occurred_at", header.OccurredAt),
		zap.Any("payload", event),
	)
	return nil
}
