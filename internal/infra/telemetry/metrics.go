package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

const namespace = "authenticute"

// Metrics holds the service's domain collectors.
type Metrics struct {
	rateLimitDecisions *prometheus.CounterVec
	sweptRecords       *prometheus.CounterVec
	sweepDuration      *prometheus.HistogramVec
	emailDeliveries    *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	eventDeliveryFails *prometheus.CounterVec
}

// NewMetrics registers the domain collectors with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		rateLimitDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rate_limit",
			Name:      "decisions_total",
			Help:      "Rate limiter decisions partitioned by scope and outcome.",
		}, []string{"scope", "outcome"}),
		sweptRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "deleted_total",
			Help:      "Records removed by the background sweeper partitioned by kind.",
		}, []string{"kind"}),
		sweepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "duration_seconds",
			Help:      "Duration of sweeper runs partitioned by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		emailDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "email",
			Name:      "deliveries_total",
			Help:      "Outbound email attempts partitioned by outcome.",
		}, []string{"outcome"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Account events handed to the publisher partitioned by type and outcome.",
		}, []string{"type", "outcome"}),
		eventDeliveryFails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "delivery_failures_total",
			Help:      "Queued events the broker client gave up on partitioned by topic.",
		}, []string{"topic"}),
	}
}

// ObserveSweep records a sweeper run for kind.
func (m *Metrics) ObserveSweep(kind string, deleted int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sweptRecords.WithLabelValues(kind).Add(float64(deleted))
	m.sweepDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// InstrumentRateLimiter counts the decisions made by limiter under scope.
func (m *Metrics) InstrumentRateLimiter(scope string, limiter port.RateLimiter) port.RateLimiter {
	if m == nil || limiter == nil {
		return limiter
	}
	return &instrumentedLimiter{scope: scope, next: limiter, decisions: m.rateLimitDecisions}
}

// InstrumentEmailSender counts delivery outcomes of sender.
func (m *Metrics) InstrumentEmailSender(sender port.EmailSender) port.EmailSender {
	if m == nil || sender == nil {
		return sender
	}
	return &instrumentedSender{next: sender, deliveries: m.emailDeliveries}
}

// InstrumentEventPublisher counts publish outcomes by event type.
func (m *Metrics) InstrumentEventPublisher(publisher port.EventPublisher) port.EventPublisher {
	if m == nil || publisher == nil {
		return publisher
	}
	return &instrumentedPublisher{next: publisher, published: m.eventsPublished}
}

// ObserveEventDeliveryFailure counts an asynchronous delivery failure on topic.
func (m *Metrics) ObserveEventDeliveryFailure(topic string, _ error) {
	if m == nil {
		return
	}
	m.eventDeliveryFails.WithLabelValues(topic).Inc()
}

type instrumentedLimiter struct {
	scope     string
	next      port.RateLimiter
	decisions *prometheus.CounterVec
}

func (l *instrumentedLimiter) Admit(ctx context.Context, identifier string) (port.RateLimitDecision, error) {
	decision, err := l.next.Admit(ctx, identifier)
	switch {
	case err != nil:
		l.decisions.WithLabelValues(l.scope, "error").Inc()
	case decision.Allowed:
		l.decisions.WithLabelValues(l.scope, "allowed").Inc()
	default:
		l.decisions.WithLabelValues(l.scope, "rejected").Inc()
	}
	return decision, err
}

type instrumentedSender struct {
	next       port.EmailSender
	deliveries *prometheus.CounterVec
}

func (s *instrumentedSender) Send(ctx context.Context, msg port.EmailMessage) error {
	if err := s.next.Send(ctx, msg); err != nil {
		s.deliveries.WithLabelValues("failed").Inc()
		return err
	}
	s.deliveries.WithLabelValues("sent").Inc()
	return nil
}

type instrumentedPublisher struct {
	next      port.EventPublisher
	published *prometheus.CounterVec
}

func (p *instrumentedPublisher) Publish(ctx context.Context, event domain.Event) error {
	if err := p.next.Publish(ctx, event); err != nil {
		p.published.WithLabelValues(event.Type(), "failed").Inc()
		return err
	}
	p.published.WithLabelValues(event.Type(), "queued").Inc()
	return nil
}
