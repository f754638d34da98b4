package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader echoes the trace id back to the caller.
const TraceIDHeader = "X-Trace-ID"

// Keys stored on the gin context.
const (
	UserIDKey = "user_id"

	traceIDKey        = "trace_id"
	requestIDKey      = "request_id"
	requestContextKey = "request_context"
)

// RequestContext is the caller metadata captured once per request and handed
// to the auth flows for session and audit records.
type RequestContext struct {
	TraceID   string
	RequestID string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext assigns a trace id and captures caller metadata. The trace id
// comes from the active span when tracing is on, then X-Trace-ID, then a uuid.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := resolveTraceID(c)
		c.Set(traceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Set(requestContextKey, newRequestContext(c, traceID))

		c.Next()
	}
}

func resolveTraceID(c *gin.Context) string {
	if span := trace.SpanContextFromContext(c.Request.Context()); span.HasTraceID() {
		return span.TraceID().String()
	}
	if id := c.GetHeader(TraceIDHeader); validRequestID(id) {
		return id
	}
	return uuid.NewString()
}

func newRequestContext(c *gin.Context, traceID string) *RequestContext {
	return &RequestContext{
		TraceID:   traceID,
		RequestID: GetRequestID(c),
		IP:        ClientIP(c),
		UserAgent: c.Request.UserAgent(),
	}
}

// GetTraceID returns the trace id assigned by EnrichContext.
func GetTraceID(c *gin.Context) string {
	return c.GetString(traceIDKey)
}

// GetRequestContext returns the metadata captured by EnrichContext, building
// it on the spot for requests that skipped the middleware.
func GetRequestContext(c *gin.Context) *RequestContext {
	if value, ok := c.Get(requestContextKey); ok {
		if reqCtx, ok := value.(*RequestContext); ok {
			return reqCtx
		}
	}
	return newRequestContext(c, GetTraceID(c))
}
