package middleware

import (
	"communityos/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// HTTP headers
const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

const (
	ginKeyRequestID = "request_id"
	ginKeyTraceID   = "trace_id"
)

// RequestIDMiddleware assigns every request an id, reusing one sent by an
// upstream proxy. The trace id is the active span's when there is one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := c.Request.Context()
		traceID := c.GetHeader(HeaderTraceID)
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = requestID
		}

		c.Set(ginKeyRequestID, requestID)
		c.Set(ginKeyTraceID, traceID)

		ctx = logger.WithRequestID(ctx, requestID)
		ctx = logger.WithTraceID(ctx, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		c.Next()
	}
}

// GetRequestIDFromGin returns the id assigned by RequestIDMiddleware.
func GetRequestIDFromGin(c *gin.Context) string {
	return c.GetString(ginKeyRequestID)
}
