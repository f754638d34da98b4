package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
)

// fakeAsyncProducer embeds the interface so only the methods the producer
// touches need implementing.
type fakeAsyncProducer struct {
	sarama.AsyncProducer
	input     chan *sarama.ProducerMessage
	errs      chan *sarama.ProducerError
	closeOnce sync.Once
}

func newFakeAsyncProducer(buffer int) *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input: make(chan *sarama.ProducerMessage, buffer),
		errs:  make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errs }

func (f *fakeAsyncProducer) Close() error {
	f.closeOnce.Do(func() { close(f.errs) })
	return nil
}

func newTestPublisher(t *testing.T) (*Publisher, *fakeAsyncProducer) {
	t.Helper()
	async := newFakeAsyncProducer(1)
	producer := newProducer(async, "authenticute", nil, zaptest.NewLogger(t))
	t.Cleanup(func() { require.NoError(t, producer.Close()) })

	publisher := NewPublisher(producer, "authenticute")
	publisher.now = func() time.Time { return time.Date(2025, 11, 18, 9, 0, 0, 0, time.UTC) }
	return publisher, async
}

func receive(t *testing.T, async *fakeAsyncProducer) (*sarama.ProducerMessage, map[string]any) {
	t.Helper()
	select {
	case msg := <-async.input:
		raw, err := msg.Value.Encode()
		require.NoError(t, err)
		var env map[string]any
		require.NoError(t, json.Unmarshal(raw, &env))
		return msg, env
	case <-time.After(time.Second):
		t.Fatal("no message queued")
		return nil, nil
	}
}

func header(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishUserRegistered(t *testing.T) {
	publisher, async := newTestPublisher(t)
	registeredAt := time.Date(2025, 11, 18, 8, 30, 0, 0, time.UTC)

	err := publisher.Publish(context.Background(), domain.UserRegisteredEvent{
		EventHeader:        domain.EventHeader{ID: "event-123", UserID: "user-1", OccurredAt: registeredAt},
		Email:              "alice@example.com",
		Name:               "Alice",
		RegistrationMethod: "password",
	})
	require.NoError(t, err)

	msg, env := receive(t, async)
	assert.Equal(t, "authenticute.user.registered", msg.Topic)
	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "user-1", string(key))
	assert.Equal(t, domain.EventUserRegistered, header(msg, headerEventType))
	assert.Equal(t, schemaVersion, header(msg, headerSchema))
	assert.Empty(t, header(msg, headerTraceID))

	assert.Equal(t, "event-123", env["event_id"])
	assert.Equal(t, "user-1", env["user_id"])
	assert.Equal(t, "2025-11-18T08:30:00Z", env["occurred_at"])
	assert.Equal(t, "authenticute", env["source"])

	payload := env["payload"].(map[string]any)
	assert.Equal(t, "alice@example.com", payload["email"])
	assert.Equal(t, "password", payload["registration_method"])
	assert.NotContains(t, payload, "user_agent")
	assert.NotContains(t, payload, "ID")
}

func TestPublishFillsMissingHeader(t *testing.T) {
	publisher, async := newTestPublisher(t)

	require.NoError(t, publisher.Publish(context.Background(), domain.SessionRevokedEvent{
		EventHeader:     domain.EventHeader{UserID: "user-1"},
		Reason:          "logout_all",
		SessionsRevoked: 3,
	}))

	msg, env := receive(t, async)
	assert.Equal(t, "authenticute.session.revoked", msg.Topic)
	assert.NotEmpty(t, env["event_id"])
	assert.Equal(t, "2025-11-18T09:00:00Z", env["occurred_at"])

	payload := env["payload"].(map[string]any)
	assert.EqualValues(t, 3, payload["sessions_revoked"])
	assert.NotContains(t, payload, "session_id")
}

func TestPublishCarriesTraceID(t *testing.T) {
	publisher, async := newTestPublisher(t)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	require.NoError(t, publisher.Publish(ctx, domain.EmailVerifiedEvent{EventHeader: domain.EventHeader{UserID: "user-1"}}))

	msg, _ := receive(t, async)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", header(msg, headerTraceID))
}

func TestPublishGivesUpWhenContextEnds(t *testing.T) {
	publisher, async := newTestPublisher(t)
	async.input <- &sarama.ProducerMessage{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.Publish(ctx, domain.EmailVerifiedEvent{EventHeader: domain.EventHeader{UserID: "user-1"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProducerReportsDeliveryFailures(t *testing.T) {
	async := newFakeAsyncProducer(0)
	failures := make(chan string, 1)
	producer := newProducer(async, "", func(topic string, _ error) { failures <- topic }, zaptest.NewLogger(t))

	async.errs <- &sarama.ProducerError{Msg: &sarama.ProducerMessage{Topic: "user.registered"}, Err: errors.New("broker unavailable")}

	select {
	case topic := <-failures:
		assert.Equal(t, "user.registered", topic)
	case <-time.After(time.Second):
		t.Fatal("delivery failure not reported")
	}
	require.NoError(t, producer.Close())
	require.NoError(t, producer.Close())
}

func TestProducerTopic(t *testing.T) {
	prefixed := newProducer(newFakeAsyncProducer(0), "authenticute.", nil, nil)
	defer prefixed.Close()
	assert.Equal(t, "authenticute.user.registered", prefixed.Topic(domain.EventUserRegistered))

	bare := newProducer(newFakeAsyncProducer(0), "", nil, nil)
	defer bare.Close()
	assert.Equal(t, "user.registered", bare.Topic(domain.EventUserRegistered))
}

func TestSaramaConfig(t *testing.T) {
	sc := SaramaConfig(config.KafkaSettings{ClientID: "authenticute-test"})

	assert.Equal(t, "authenticute-test", sc.ClientID)
	assert.True(t, sc.Producer.Return.Errors)
	assert.False(t, sc.Producer.Return.Successes)
	assert.NoError(t, sc.Validate())
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaSettings{}, nil, nil)
	assert.ErrorContains(t, err, "at least one broker")
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	publisher := NewLogPublisher(zap.New(core))

	require.NoError(t, publisher.Publish(context.Background(), domain.PasswordChangedEvent{
		EventHeader: domain.EventHeader{UserID: "user-1"},
		ChangedBy:   "password_reset",
	}))

	entries := logs.FilterMessage("event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EventPasswordChanged, entries[0].ContextMap()["event_type"])
	assert.Equal(t, "user-1", entries[0].ContextMap()["user_id"])
}
