package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/komiwalnut/AuthentiCute/internal/infra/config"
)

func TestTracingExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()

	tracing, err := newTracing(context.Background(), exporter, config.TelemetrySettings{
		ServiceName:  "authenticute",
		SamplingRate: 1,
	}, "test", zaptest.NewLogger(t))
	require.NoError(t, err)

	_, span := tracing.Provider().Tracer("telemetry-test").Start(context.Background(), "login")
	span.End()

	require.NoError(t, tracing.provider.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "login", spans[0].Name)

	require.NoError(t, tracing.Shutdown(context.Background()))
}

func TestTracingZeroRateDropsRootSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()

	tracing, err := newTracing(context.Background(), exporter, config.TelemetrySettings{
		ServiceName:  "authenticute",
		SamplingRate: 0,
	}, "test", nil)
	require.NoError(t, err)

	_, span := tracing.Provider().Tracer("telemetry-test").Start(context.Background(), "signup")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()

	require.NoError(t, tracing.provider.ForceFlush(context.Background()))
	assert.Empty(t, exporter.GetSpans())
	require.NoError(t, tracing.Shutdown(context.Background()))
}

func TestNewTracingRequiresEndpoint(t *testing.T) {
	_, err := NewTracing(context.Background(), config.TelemetrySettings{}, "test", nil)
	assert.ErrorContains(t, err, "otlp endpoint is empty")
}
