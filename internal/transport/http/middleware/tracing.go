package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/komiwalnut/AuthentiCute/internal/transport/http"

type tracingConfig struct {
	provider    trace.TracerProvider
	propagator  propagation.TextMapPropagator
	traceProbes bool
}

// TracingOption configures Tracing.
type TracingOption func(*tracingConfig)

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(cfg *tracingConfig) { cfg.provider = tp }
}

// WithPropagator replaces the global propagator used to read inbound context.
func WithPropagator(p propagation.TextMapPropagator) TracingOption {
	return func(cfg *tracingConfig) { cfg.propagator = p }
}

// WithProbeSpans also traces /healthz, /readyz and /metrics, which are skipped otherwise.
func WithProbeSpans() TracingOption {
	return func(cfg *tracingConfig) { cfg.traceProbes = true }
}

// Tracing opens a server span per request, continuing the caller's trace when
// one is propagated.
func Tracing(opts ...TracingOption) gin.HandlerFunc {
	cfg := tracingConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.provider == nil {
		cfg.provider = otel.GetTracerProvider()
	}
	if cfg.propagator == nil {
		cfg.propagator = otel.GetTextMapPropagator()
	}
	tracer := cfg.provider.Tracer(tracerName)

	return func(c *gin.Context) {
		if _, probe := probePaths[c.Request.URL.Path]; probe && !cfg.traceProbes {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		parent := cfg.propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(parent, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Request.Method),
				semconv.HTTPRoute(route),
				semconv.URLPath(c.Request.URL.Path),
				semconv.ClientAddress(ClientIP(c)),
				semconv.UserAgentOriginal(c.Request.UserAgent()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
		finishSpan(c, span)
	}
}

func finishSpan(c *gin.Context, span trace.Span) {
	status := c.Writer.Status()
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	if userID, ok := GetAuthenticatedUserID(c); ok {
		span.SetAttributes(attribute.String("enduser.id", userID))
	}
	for _, ginErr := range c.Errors {
		span.RecordError(ginErr.Err)
	}
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
