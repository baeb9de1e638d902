package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/R3E-Network/storefront/pkg/logger"
)

// TraceIDHeader carries the per-request trace id.
const TraceIDHeader = "X-Trace-ID"

// NewTraceID returns a fresh trace id.
func NewTraceID() string { return uuid.NewString() }

// WithTraceID returns a copy of ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace id in ctx, or "".
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// LoggingMiddleware logs HTTP requests with trace ID
func LoggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get(TraceIDHeader)
			if traceID == "" || len(traceID) > 128 {
				traceID = NewTraceID()
			}
			r = r.WithContext(WithTraceID(r.Context(), traceID))
			w.Header().Set(TraceIDHeader, traceID)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			entry := log.WithFields(map[string]interface{}{
				"trace_id":    traceID,
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote":      ClientIP(r),
			})
			switch {
			case wrapped.statusCode >= 500:
				entry.Error("request")
			case wrapped.statusCode >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
		})
	}
}
